package synth

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/interp"

	"github.com/RyanBlaney/tonic/algorithms/common"
	"github.com/RyanBlaney/tonic/algorithms/windowing"
	"github.com/RyanBlaney/tonic/audio"
)

const (
	highQualityFrameSize     = 4096
	standardQualityFrameSize = 2048
	overlapFactor            = 4
	normFloor                = 1e-12

	// The resampling spline is fitted piecewise so its linear system stays small
	splineChunk  = 16384
	splineMargin = 32
)

// Vocoder shifts pitch in process: each channel is time-stretched by the
// shift ratio with an identity phase-locked phase vocoder, then read back
// at the ratio with a natural cubic spline so the duration is unchanged.
// Vocoder ignores the Transients and PreserveFormants hints.
type Vocoder struct{}

// NewVocoder creates a phase vocoder shifter
func NewVocoder() *Vocoder {
	return &Vocoder{}
}

// Shift implements Shifter. Channels are processed concurrently.
func (v *Vocoder) Shift(ctx context.Context, buf audio.Buffer, semitones float64, hints Hints) (audio.Buffer, error) {
	if err := validateShift(buf, semitones); err != nil {
		return audio.Buffer{}, err
	}
	if semitones == 0 {
		return buf.Clone(), nil
	}

	frameSize := highQualityFrameSize
	if hints.Quality == QualityStandard {
		frameSize = standardQualityFrameSize
	}
	ratio := Ratio(semitones)

	out := make([][]float64, buf.NumChannels())
	g, ctx := errgroup.WithContext(ctx)
	for c, ch := range buf.Channels {
		g.Go(func() error {
			shifted, err := shiftChannel(ctx, ch, ratio, frameSize)
			if err != nil {
				return fmt.Errorf("channel %d: %w", c, err)
			}
			out[c] = shifted
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return audio.Buffer{}, err
	}

	return audio.New(out, buf.SampleRate)
}

func shiftChannel(ctx context.Context, input []float64, ratio float64, frameSize int) ([]float64, error) {
	if len(input) == 0 {
		return []float64{}, nil
	}

	pv := newPhaseVocoder(frameSize, ratio)

	// One frame of zeros on each side keeps every real sample under full overlap
	pad := frameSize
	padded := make([]float64, pad+len(input)+pad)
	copy(padded[pad:], input)

	stretched, err := pv.stretch(ctx, padded)
	if err != nil {
		return nil, err
	}

	offset := float64(pad / pv.analysisHop * pv.synthesisHop)
	return resampleSpline(ctx, stretched, offset, ratio, len(input))
}

// phaseVocoder time-stretches one channel by synthesisHop/analysisHop.
// It is not safe for concurrent use.
type phaseVocoder struct {
	frameSize    int
	analysisHop  int
	synthesisHop int

	fft    *fourier.FFT
	window []float64
	omega  []float64

	prevPhase  []float64
	sumPhase   []float64
	magnitudes []float64
	instFreqs  []float64
	peakBins   []int

	frame    []float64
	spectrum []complex128
}

func newPhaseVocoder(frameSize int, ratio float64) *phaseVocoder {
	// Upward shifts stretch, so the analysis hop shrinks to keep the
	// synthesis hop at or below a quarter frame
	divisor := overlapFactor
	if ratio > 1 {
		divisor *= common.NextPowerOfTwo(int(math.Ceil(ratio)))
	}
	analysisHop := frameSize / divisor
	synthesisHop := max(1, int(math.Round(float64(analysisHop)*ratio)))

	bins := frameSize/2 + 1
	omega := make([]float64, bins)
	for k := range omega {
		omega[k] = 2 * math.Pi * float64(k) / float64(frameSize)
	}

	return &phaseVocoder{
		frameSize:    frameSize,
		analysisHop:  analysisHop,
		synthesisHop: synthesisHop,
		fft:          fourier.NewFFT(frameSize),
		window:       windowing.NewHann(frameSize, false).GetCoefficients(),
		omega:        omega,
		prevPhase:    make([]float64, bins),
		sumPhase:     make([]float64, bins),
		magnitudes:   make([]float64, bins),
		instFreqs:    make([]float64, bins),
		frame:        make([]float64, frameSize),
		spectrum:     make([]complex128, bins),
	}
}

func (p *phaseVocoder) stretch(ctx context.Context, input []float64) ([]float64, error) {
	frameCount := 1 + (len(input)-1)/p.analysisHop
	stretchedLen := (frameCount-1)*p.synthesisHop + p.frameSize
	stretched := make([]float64, stretchedLen)
	norm := make([]float64, stretchedLen)

	half := p.frameSize / 2
	analysisHopF := float64(p.analysisHop)
	synthesisHopF := float64(p.synthesisHop)
	scale := 1 / float64(p.frameSize)

	for frame := range frameCount {
		if frame%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		inPos := frame * p.analysisHop
		outPos := frame * p.synthesisHop

		for i := range p.frameSize {
			x := 0.0
			if idx := inPos + i; idx < len(input) {
				x = input[idx]
			}
			p.frame[i] = x * p.window[i]
		}
		p.fft.Coefficients(p.spectrum, p.frame)

		for k := 0; k <= half; k++ {
			re, im := real(p.spectrum[k]), imag(p.spectrum[k])
			p.magnitudes[k] = math.Hypot(re, im)
			phase := math.Atan2(im, re)

			delta := wrapPhase(phase - p.prevPhase[k] - p.omega[k]*analysisHopF)
			p.instFreqs[k] = p.omega[k] + delta/analysisHopF
			p.prevPhase[k] = phase
		}

		if frame == 0 {
			copy(p.sumPhase, p.prevPhase)
		} else {
			p.advancePhases(synthesisHopF)
		}

		for k := 0; k <= half; k++ {
			p.spectrum[k] = complex(
				p.magnitudes[k]*math.Cos(p.sumPhase[k]),
				p.magnitudes[k]*math.Sin(p.sumPhase[k]),
			)
		}
		p.spectrum[0] = complex(real(p.spectrum[0]), 0)
		p.spectrum[half] = complex(real(p.spectrum[half]), 0)

		p.fft.Sequence(p.frame, p.spectrum)

		for i := range p.frameSize {
			idx := outPos + i
			w := p.window[i]
			stretched[idx] += p.frame[i] * scale * w
			norm[idx] += w * w
		}
	}

	for i := range stretched {
		if norm[i] > normFloor {
			stretched[i] /= norm[i]
		}
	}

	return stretched, nil
}

// advancePhases applies identity phase locking (Laroche & Dolson): peaks
// advance by their instantaneous frequency and every other bin keeps its
// analysis phase offset from the nearest peak.
func (p *phaseVocoder) advancePhases(synthesisHopF float64) {
	half := p.frameSize / 2

	p.peakBins = p.peakBins[:0]
	for k := 1; k < half; k++ {
		if p.magnitudes[k] >= p.magnitudes[k-1] && p.magnitudes[k] > p.magnitudes[k+1] {
			p.peakBins = append(p.peakBins, k)
		}
	}

	if len(p.peakBins) == 0 {
		for k := 0; k <= half; k++ {
			p.sumPhase[k] += p.instFreqs[k] * synthesisHopF
		}
		return
	}

	for _, pk := range p.peakBins {
		p.sumPhase[pk] += p.instFreqs[pk] * synthesisHopF
	}

	peakIdx := 0
	for k := 0; k <= half; k++ {
		for peakIdx+1 < len(p.peakBins) {
			curr, next := p.peakBins[peakIdx], p.peakBins[peakIdx+1]
			if absInt(next-k) >= absInt(curr-k) {
				break
			}
			peakIdx++
		}

		if pk := p.peakBins[peakIdx]; k != pk {
			p.sumPhase[k] = p.sumPhase[pk] + (p.prevPhase[k] - p.prevPhase[pk])
		}
	}
}

// resampleSpline reads n samples from stretched at offset + i*ratio.
// Positions past the end of stretched read as zero.
func resampleSpline(ctx context.Context, stretched []float64, offset, ratio float64, n int) ([]float64, error) {
	out := make([]float64, n)
	last := len(stretched) - 1

	for start := 0; start < n; start += splineChunk {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+splineChunk, n)

		lo := max(0, int(math.Floor(offset+float64(start)*ratio))-splineMargin)
		hi := min(last, int(math.Ceil(offset+float64(end-1)*ratio))+splineMargin)
		if hi-lo < 2 {
			continue
		}

		xs := make([]float64, hi-lo+1)
		for i := range xs {
			xs[i] = float64(lo + i)
		}

		var spline interp.NaturalCubic
		if err := spline.Fit(xs, stretched[lo:hi+1]); err != nil {
			return nil, fmt.Errorf("spline fit: %w", err)
		}

		for i := start; i < end; i++ {
			pos := offset + float64(i)*ratio
			if pos > float64(hi) {
				break
			}
			out[i] = spline.Predict(pos)
		}
	}

	return out, nil
}

func wrapPhase(x float64) float64 {
	x = math.Mod(x+math.Pi, 2*math.Pi)
	if x < 0 {
		x += 2 * math.Pi
	}
	return x - math.Pi
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
