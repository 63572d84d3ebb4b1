package keynorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/tonic/algorithms/temporal"
	"github.com/RyanBlaney/tonic/audio"
	"github.com/RyanBlaney/tonic/logging"
	"github.com/RyanBlaney/tonic/synth"
)

// Decoder reads an audio file at its native rate and channel count
type Decoder interface {
	Decode(ctx context.Context, path string) (audio.Buffer, error)
}

// Encoder writes an audio file
type Encoder interface {
	Encode(ctx context.Context, path string, buf audio.Buffer) error
}

// Analyzer turns a trimmed mono signal into a pitch-class profile
type Analyzer interface {
	Profile(signal []float64, sampleRate int) ([NumPitchClasses]float64, error)
}

// Collaborators are the pipeline's external services
type Collaborators struct {
	Decoder  Decoder
	Encoder  Encoder
	Analyzer Analyzer
	Shifter  synth.Shifter
}

// Config holds the per-file policy
type Config struct {
	TopDB       float64       `json:"top_db"`
	MinDuration time.Duration `json:"min_duration"`
	TargetPeak  float64       `json:"target_peak"`
	Hints       synth.Hints   `json:"hints"`
}

// DefaultConfig returns a 40 dB trim, a 50 ms floor and a 0.999 target peak
func DefaultConfig() Config {
	return Config{
		TopDB:       40,
		MinDuration: 50 * time.Millisecond,
		TargetPeak:  0.999,
		Hints:       synth.DefaultHints(),
	}
}

// Plan is the analysis outcome for one buffer
type Plan struct {
	Root     int
	Shift    int
	Profile  Profile
	Analyzed int // frames left after trimming
}

// Pipeline runs decode, trim, analysis, shift, normalization and encode for
// one file at a time. It holds no per-file state and is safe for concurrent
// use when its collaborators are.
type Pipeline struct {
	collab  Collaborators
	config  Config
	trimmer *temporal.SilenceDetection
	logger  logging.Logger
}

// NewPipeline validates the collaborators and policy
func NewPipeline(collab Collaborators, config Config, logger logging.Logger) (*Pipeline, error) {
	switch {
	case collab.Decoder == nil:
		return nil, errors.New("pipeline requires a decoder")
	case collab.Encoder == nil:
		return nil, errors.New("pipeline requires an encoder")
	case collab.Analyzer == nil:
		return nil, errors.New("pipeline requires an analyzer")
	case collab.Shifter == nil:
		return nil, errors.New("pipeline requires a shifter")
	}
	if !(config.TargetPeak > 0 && config.TargetPeak <= 1) {
		return nil, fmt.Errorf("%w: %g", ErrBadTargetPeak, config.TargetPeak)
	}
	if config.TopDB <= 0 {
		return nil, fmt.Errorf("top_db must be positive: %g", config.TopDB)
	}
	if config.MinDuration < 0 {
		return nil, fmt.Errorf("min_duration must not be negative: %v", config.MinDuration)
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	trimConfig := temporal.DefaultTrimConfig()
	trimConfig.TopDB = config.TopDB

	return &Pipeline{
		collab:  collab,
		config:  config,
		trimmer: temporal.NewSilenceDetectionWithConfig(trimConfig),
		logger:  logger,
	}, nil
}

// Analyze mixes buf down to mono, trims silence and picks the shift. It
// returns ErrTooShort when the trimmed signal is under MinDuration.
func (p *Pipeline) Analyze(buf audio.Buffer) (Plan, error) {
	trimmed := p.trimmer.Trim(buf.Mono())

	minFrames := float64(buf.SampleRate) * p.config.MinDuration.Seconds()
	if float64(len(trimmed)) < minFrames || len(trimmed) == 0 {
		return Plan{Root: -1, Analyzed: len(trimmed)}, fmt.Errorf("%w: %d frames at %d Hz",
			ErrTooShort, len(trimmed), buf.SampleRate)
	}

	values, err := p.collab.Analyzer.Profile(trimmed, buf.SampleRate)
	if err != nil {
		return Plan{Root: -1, Analyzed: len(trimmed)}, err
	}
	profile := Profile(values)
	if err := profile.Validate(); err != nil {
		return Plan{Root: -1, Analyzed: len(trimmed)}, err
	}

	root := EstimateRoot(profile)
	shift, err := PlanTransposition(root)
	if err != nil {
		return Plan{Root: -1, Analyzed: len(trimmed)}, err
	}

	return Plan{Root: root, Shift: shift, Profile: profile, Analyzed: len(trimmed)}, nil
}

// ProcessFile normalizes input and writes it to output. Every failure is
// returned in Result.Err as a *FileError; none of them is fatal to a batch.
func (p *Pipeline) ProcessFile(ctx context.Context, input, output string) Result {
	start := time.Now()
	res := p.process(ctx, Result{Input: input, Output: output, Root: -1, RootName: RootName(-1)})
	res.Elapsed = time.Since(start)
	p.report(res)
	return res
}

func (p *Pipeline) process(ctx context.Context, res Result) Result {
	buf, err := p.collab.Decoder.Decode(ctx, res.Input)
	if err == nil {
		err = buf.Validate()
	}
	if err != nil {
		res.Err = fileError(res.Input, KindDecode, err)
		return res
	}
	res.State = StateDecoded
	res.Frames = buf.Frames()
	res.SampleRate = buf.SampleRate

	plan, err := p.Analyze(buf)
	switch {
	case errors.Is(err, ErrTooShort):
		res.State = StateSkipped
		res.Err = fileError(res.Input, KindTooShort, err)
		return res
	case err != nil:
		res.State = StateTrimmed
		res.Err = fileError(res.Input, KindAnalysis, err)
		return res
	}
	res.State = StateRootChosen
	res.Root = plan.Root
	res.RootName = RootName(plan.Root)
	res.Shift = plan.Shift

	shifted, err := p.collab.Shifter.Shift(ctx, buf, float64(plan.Shift), p.config.Hints)
	if err == nil && (shifted.NumChannels() != buf.NumChannels() ||
		shifted.Frames() != buf.Frames() || shifted.SampleRate != buf.SampleRate) {
		err = fmt.Errorf("%w: got %d ch x %d frames at %d Hz", ErrShapeMismatch,
			shifted.NumChannels(), shifted.Frames(), shifted.SampleRate)
	}
	if err != nil {
		res.Err = fileError(res.Input, KindSynthesis, err)
		return res
	}
	res.State = StateShifted

	normalized, err := NormalizePeak(shifted, p.config.TargetPeak)
	if err != nil {
		res.Err = fileError(res.Input, KindEncode, err)
		return res
	}
	res.State = StateNormalized

	if err := p.collab.Encoder.Encode(ctx, res.Output, normalized); err != nil {
		res.Err = fileError(res.Input, KindEncode, err)
		return res
	}
	res.State = StateWritten
	return res
}

// report emits the one diagnostic line per file
func (p *Pipeline) report(res Result) {
	fields := logging.Fields{
		"file":      res.Input,
		"root":      res.Root,
		"root_name": res.RootName,
		"shift":     res.Shift,
		"outcome":   res.Outcome(),
	}

	switch res.Outcome() {
	case OutcomeWritten:
		fields["output"] = res.Output
		fields["elapsed_ms"] = res.Elapsed.Milliseconds()
		p.logger.Info("Normalized key", fields)
	case OutcomeSkipped:
		fields["reason"] = res.Err.Error()
		p.logger.Warn("Skipped file", fields)
	default:
		fields["kind"] = KindOf(res.Err).String()
		p.logger.Error(res.Err, "Failed to process file", fields)
	}
}
