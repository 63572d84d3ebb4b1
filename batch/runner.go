package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/tonic/keynorm"
	"github.com/RyanBlaney/tonic/logging"
)

// ErrShadowed marks an input skipped because a later input has the same base name
var ErrShadowed = errors.New("output name taken by a later input")

// Processor normalizes one file. *keynorm.Pipeline satisfies it.
type Processor interface {
	ProcessFile(ctx context.Context, input, output string) keynorm.Result
}

// Options configures a batch run
type Options struct {
	Workers    int
	Extensions []string

	// ProgressOutput receives the progress bar; nil disables it
	ProgressOutput io.Writer
}

// Summary totals a batch run. Results are in discovery order.
type Summary struct {
	Total   int              `json:"total"`
	Written int              `json:"written"`
	Skipped int              `json:"skipped"`
	Failed  int              `json:"failed"`
	Elapsed time.Duration    `json:"elapsed"`
	Results []keynorm.Result `json:"results"`
}

func (s *Summary) add(res keynorm.Result) {
	switch res.Outcome() {
	case keynorm.OutcomeWritten:
		s.Written++
	case keynorm.OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Runner fans a directory of files out over a bounded set of workers
type Runner struct {
	processor Processor
	options   Options
	logger    logging.Logger
}

// NewRunner creates a batch runner
func NewRunner(processor Processor, options Options, logger logging.Logger) *Runner {
	if options.Workers <= 0 {
		options.Workers = 1
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Runner{processor: processor, options: options, logger: logger}
}

// Run processes every recognized file under inputDir into outputDir. It
// returns an error only when inputDir cannot be read, outputDir cannot be
// created, or ctx ends the run early; per-file problems are in the Summary.
func (r *Runner) Run(ctx context.Context, inputDir, outputDir string) (Summary, error) {
	start := time.Now()
	logger := r.logger.WithFields(logging.Fields{
		"component": "batch_runner",
	})

	info, err := os.Stat(inputDir)
	if err != nil {
		return Summary{}, fmt.Errorf("cannot read input directory: %w", err)
	}
	if !info.IsDir() {
		return Summary{}, fmt.Errorf("input %s is not a directory", inputDir)
	}

	inputs, err := Discover(inputDir, r.options.Extensions)
	if err != nil {
		return Summary{}, fmt.Errorf("cannot read input directory: %w", err)
	}
	if len(inputs) == 0 {
		logger.Info("No audio files found", logging.Fields{
			"input_dir":  inputDir,
			"extensions": r.options.Extensions,
		})
		return Summary{Results: []keynorm.Result{}}, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("cannot create output directory: %w", err)
	}

	jobs := PlanJobs(inputs, outputDir)
	logger.Info("Starting batch", logging.Fields{
		"files":   len(jobs),
		"workers": r.options.Workers,
		"output":  outputDir,
	})

	progress, bar := r.newProgress(len(jobs))
	results := make([]keynorm.Result, len(jobs))

	g := new(errgroup.Group)
	g.SetLimit(r.options.Workers)
	for i, job := range jobs {
		if job.Shadowed {
			results[i] = r.shadowed(job, logger)
			bar.Increment()
			continue
		}
		g.Go(func() error {
			defer bar.Increment()
			if err := ctx.Err(); err != nil {
				results[i] = keynorm.Result{
					Input:    job.Input,
					Output:   job.Output,
					Root:     -1,
					RootName: keynorm.RootName(-1),
					Err:      err,
				}
				return nil
			}
			fileCtx := logging.ContextWithFields(ctx, logging.Fields{"file": job.Input})
			results[i] = r.processor.ProcessFile(fileCtx, job.Input, job.Output)
			return nil
		})
	}
	_ = g.Wait()
	if progress != nil {
		progress.Wait()
	}

	summary := Summary{Total: len(results), Results: results}
	for _, res := range results {
		summary.add(res)
	}
	summary.Elapsed = time.Since(start)

	logger.Info("Batch finished", logging.Fields{
		"total":      summary.Total,
		"written":    summary.Written,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
		"elapsed_ms": summary.Elapsed.Milliseconds(),
	})

	return summary, ctx.Err()
}

func (r *Runner) shadowed(job Job, logger logging.Logger) keynorm.Result {
	res := keynorm.Result{
		Input:    job.Input,
		Output:   job.Output,
		State:    keynorm.StateSkipped,
		Root:     -1,
		RootName: keynorm.RootName(-1),
		Err:      fmt.Errorf("%w: %s", ErrShadowed, job.Output),
	}
	logger.Warn("Skipped file", logging.Fields{
		"file":      res.Input,
		"root":      res.Root,
		"root_name": res.RootName,
		"shift":     res.Shift,
		"outcome":   res.Outcome(),
		"reason":    res.Err.Error(),
	})
	return res
}

// progressBar is the part of *mpb.Bar the runner uses; noBar stands in when
// progress output is disabled
type progressBar interface {
	Increment()
}

type noBar struct{}

func (noBar) Increment() {}

func (r *Runner) newProgress(total int) (*mpb.Progress, progressBar) {
	if r.options.ProgressOutput == nil {
		return nil, noBar{}
	}

	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(r.options.ProgressOutput))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Normalizing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)
	return p, bar
}
