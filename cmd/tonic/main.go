package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/tonic/algorithms/chroma"
	"github.com/RyanBlaney/tonic/batch"
	"github.com/RyanBlaney/tonic/config"
	"github.com/RyanBlaney/tonic/keynorm"
	"github.com/RyanBlaney/tonic/logging"
	"github.com/RyanBlaney/tonic/synth"
	"github.com/RyanBlaney/tonic/transcode"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tonic <input-dir> <output-dir>",
	Short: "Transpose every audio file in a directory to a C root",
	Long: `Tonic walks an input directory, estimates the tonal root of each audio
file, pitch-shifts it down onto C and writes the peak-normalized result
under the output directory with the same file name.

Settings come from TONIC_* environment variables, for example:
  TONIC_WORKERS=4 TONIC_SHIFTER=rubberband tonic ./stems ./stems-in-c`,
	Version:       version,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runNormalize,
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()

	logger := logging.NewDefaultLogger()
	logging.SetGlobalLogger(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error(err, "Invalid configuration")
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn("Unknown log level, using info", logging.Fields{"log_level": cfg.LogLevel})
	}
	logger.SetLevel(level)

	pipeline, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.Error(err, "Failed to set up pipeline")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	options := batch.Options{
		Workers:    cfg.WorkerCount(),
		Extensions: cfg.Extensions,
	}
	if cfg.Progress && stderrIsTerminal() {
		options.ProgressOutput = os.Stderr
	}

	summary, err := batch.NewRunner(pipeline, options, logger).Run(ctx, args[0], args[1])
	if err != nil {
		logger.Error(err, "Batch aborted", logging.Fields{
			"input_dir":  args[0],
			"output_dir": args[1],
		})
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d files: %d written, %d skipped, %d failed\n",
		summary.Total, summary.Written, summary.Skipped, summary.Failed)
	return nil
}

func buildPipeline(cfg config.Config, logger logging.Logger) (*keynorm.Pipeline, error) {
	ffmpeg := &transcode.FFmpegConfig{
		FFmpegPath:  cfg.Codec.FFmpegPath,
		FFprobePath: cfg.Codec.FFprobePath,
		Timeout:     cfg.Codec.Timeout,
	}
	codec, err := transcode.NewCodec(ffmpeg, cfg.Codec.BitDepth)
	if err != nil {
		return nil, err
	}

	analyzer, err := chroma.NewAnalyzer(chroma.DefaultConfig())
	if err != nil {
		return nil, err
	}

	shifter, err := buildShifter(cfg, ffmpeg, logger)
	if err != nil {
		return nil, err
	}

	quality, err := synth.ParseQuality(cfg.Synth.Quality)
	if err != nil {
		return nil, err
	}
	transients, err := synth.ParseTransients(cfg.Synth.Transients)
	if err != nil {
		return nil, err
	}

	return keynorm.NewPipeline(keynorm.Collaborators{
		Decoder:  codec,
		Encoder:  codec,
		Analyzer: analyzer,
		Shifter:  shifter,
	}, keynorm.Config{
		TopDB:       cfg.Analysis.TopDB,
		MinDuration: cfg.Analysis.MinDuration,
		TargetPeak:  cfg.Normalize.TargetPeak,
		Hints: synth.Hints{
			Quality:          quality,
			Transients:       transients,
			PreserveFormants: cfg.Synth.PreserveFormants,
		},
	}, logger)
}

func buildShifter(cfg config.Config, ffmpeg *transcode.FFmpegConfig, logger logging.Logger) (synth.Shifter, error) {
	if cfg.Synth.Shifter != "rubberband" {
		return synth.NewVocoder(), nil
	}

	rb, err := synth.NewRubberband(&synth.RubberbandConfig{
		Path:    cfg.Synth.RubberbandPath,
		Timeout: cfg.Synth.Timeout,
		FFmpeg:  ffmpeg,
	})
	if err != nil {
		return nil, err
	}
	if err := rb.CheckAvailability(); err != nil {
		return nil, fmt.Errorf("rubberband shifter selected but not usable: %w", err)
	}
	logger.Debug("Using rubberband shifter", logging.Fields{"path": cfg.Synth.RubberbandPath})
	return rb, nil
}

func stderrIsTerminal() bool {
	if fi, _ := os.Stderr.Stat(); fi != nil {
		return fi.Mode()&os.ModeCharDevice != 0
	}
	return false
}
