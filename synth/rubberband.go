package synth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/RyanBlaney/tonic/audio"
	"github.com/RyanBlaney/tonic/internal/exec"
	"github.com/RyanBlaney/tonic/logging"
	"github.com/RyanBlaney/tonic/transcode"
)

// Rubberband crispness levels for each Transients hint
var crispness = map[Transients]int{
	TransientsCrisp:  6,
	TransientsMixed:  4,
	TransientsSmooth: 1,
}

// RubberbandConfig configures the rubberband adapter
type RubberbandConfig struct {
	Path    string                  `json:"path"`
	Timeout time.Duration           `json:"timeout"`
	TempDir string                  `json:"temp_dir"` // empty means os.TempDir
	FFmpeg  *transcode.FFmpegConfig `json:"ffmpeg"`   // reads back outputs the native WAV reader rejects
}

// DefaultRubberbandConfig returns default rubberband configuration
func DefaultRubberbandConfig() *RubberbandConfig {
	return &RubberbandConfig{
		Path:    "rubberband",
		Timeout: 5 * time.Minute,
		FFmpeg:  transcode.DefaultFFmpegConfig(),
	}
}

// Rubberband shifts pitch with the rubberband command line tool. The buffer
// is exchanged through 32-bit PCM WAV files in a private temp directory.
type Rubberband struct {
	config *RubberbandConfig
	runner *exec.Runner
	codec  *transcode.Codec
}

// NewRubberband creates a rubberband shifter
func NewRubberband(config *RubberbandConfig) (*Rubberband, error) {
	if config == nil {
		config = DefaultRubberbandConfig()
	}
	codec, err := transcode.NewCodec(config.FFmpeg, 32)
	if err != nil {
		return nil, err
	}
	return &Rubberband{
		config: config,
		runner: exec.NewRunner(config.Timeout),
		codec:  codec,
	}, nil
}

// CheckAvailability reports whether the rubberband binary can be found
func (r *Rubberband) CheckAvailability() error {
	return exec.Available(r.config.Path)
}

// Shift implements Shifter. A zero shift returns a copy without running the tool.
func (r *Rubberband) Shift(ctx context.Context, buf audio.Buffer, semitones float64, hints Hints) (audio.Buffer, error) {
	if err := validateShift(buf, semitones); err != nil {
		return audio.Buffer{}, err
	}
	if semitones == 0 {
		return buf.Clone(), nil
	}

	dir, err := os.MkdirTemp(r.config.TempDir, "tonic-rubberband-*")
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")

	if err := r.codec.Encode(ctx, in, buf); err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to stage input: %w", err)
	}

	res, err := r.runner.Run(ctx, exec.Command{
		Tool:  "rubberband",
		Stage: "pitch_shift",
		Path:  r.config.Path,
		Args:  buildRubberbandArgs(semitones, hints, in, out),
	})
	if err != nil {
		return audio.Buffer{}, err
	}

	shifted, err := r.codec.Decode(ctx, out)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to read rubberband output: %w", err)
	}
	if shifted.NumChannels() != buf.NumChannels() || shifted.SampleRate != buf.SampleRate {
		return audio.Buffer{}, fmt.Errorf("rubberband output is %d ch at %d Hz, input was %d ch at %d Hz",
			shifted.NumChannels(), shifted.SampleRate, buf.NumChannels(), buf.SampleRate)
	}

	logging.WithContext(ctx).Debug("Rubberband pitch shift finished", logging.Fields{
		"component":   "rubberband",
		"semitones":   semitones,
		"duration_ms": res.Duration.Milliseconds(),
		"frames_in":   buf.Frames(),
		"frames_out":  shifted.Frames(),
	})

	return fitFrames(shifted, buf.Frames()), nil
}

func buildRubberbandArgs(semitones float64, hints Hints, in, out string) []string {
	args := []string{"-q", "-p", strconv.FormatFloat(semitones, 'f', -1, 64)}
	if hints.Quality == QualityHigh {
		args = append(args, "--pitch-hq")
	}
	if level, ok := crispness[hints.Transients]; ok {
		args = append(args, "--crisp", strconv.Itoa(level))
	}
	if hints.PreserveFormants {
		args = append(args, "-F")
	}
	return append(args, in, out)
}

// fitFrames truncates or zero-pads every channel to frames
func fitFrames(buf audio.Buffer, frames int) audio.Buffer {
	channels := make([][]float64, buf.NumChannels())
	for c, ch := range buf.Channels {
		channels[c] = make([]float64, frames)
		copy(channels[c], ch)
	}
	return audio.Buffer{Channels: channels, SampleRate: buf.SampleRate}
}
