package filters

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/tonic/algorithms/windowing"
)

// LowpassFIR is a linear-phase windowed-sinc low-pass filter.
//
// Coefficients are h[n] = 2*fc * sinc(2*fc*(n-M)) * w[n] with fc the cutoff as
// a fraction of the sample rate, M = (taps-1)/2 and w a symmetric Hann window,
// normalized to unity DC gain.
type LowpassFIR struct {
	cutoff float64 // fraction of the sample rate, (0, 0.5)
	taps   []float64
}

// NewLowpassFIR designs a filter with an odd number of taps
func NewLowpassFIR(cutoff float64, numTaps int) (*LowpassFIR, error) {
	if cutoff <= 0 || cutoff >= 0.5 {
		return nil, fmt.Errorf("cutoff must be in (0, 0.5) of the sample rate, got %g", cutoff)
	}
	if numTaps < 3 || numTaps%2 == 0 {
		return nil, fmt.Errorf("tap count must be odd and >= 3, got %d", numTaps)
	}

	window := windowing.NewHann(numTaps, true).GetCoefficients()
	taps := make([]float64, numTaps)
	mid := numTaps / 2
	sum := 0.0
	for n := range taps {
		x := 2 * cutoff * float64(n-mid)
		sinc := 1.0
		if x != 0 {
			sinc = math.Sin(math.Pi*x) / (math.Pi * x)
		}
		taps[n] = 2 * cutoff * sinc * window[n]
		sum += taps[n]
	}
	for n := range taps {
		taps[n] /= sum
	}

	return &LowpassFIR{cutoff: cutoff, taps: taps}, nil
}

// NewHalfbandDecimator returns the filter used ahead of 2x decimation: the
// cutoff sits just under the new Nyquist frequency.
func NewHalfbandDecimator() *LowpassFIR {
	f, err := NewLowpassFIR(0.24, 129)
	if err != nil {
		panic(err)
	}
	return f
}

// ProcessBuffer filters input with zero group delay; output[i] is centered on
// input[i]. Samples outside the input are treated as zero.
func (f *LowpassFIR) ProcessBuffer(input []float64) []float64 {
	return f.filter(input, 1)
}

// Decimate filters and keeps every factor-th sample. The result has
// ceil(len(input)/factor) samples and sample j corresponds to input[j*factor].
func (f *LowpassFIR) Decimate(input []float64, factor int) []float64 {
	if factor <= 1 {
		return f.ProcessBuffer(input)
	}
	return f.filter(input, factor)
}

func (f *LowpassFIR) filter(input []float64, step int) []float64 {
	n := len(input)
	outLen := (n + step - 1) / step
	output := make([]float64, outLen)
	mid := len(f.taps) / 2

	for j := range outLen {
		center := j * step
		acc := 0.0
		for k, h := range f.taps {
			idx := center + k - mid
			if idx < 0 || idx >= n {
				continue
			}
			acc += h * input[idx]
		}
		output[j] = acc
	}
	return output
}

// GetCutoff returns the cutoff as a fraction of the sample rate
func (f *LowpassFIR) GetCutoff() float64 {
	return f.cutoff
}

// GetTaps returns a copy of the filter coefficients
func (f *LowpassFIR) GetTaps() []float64 {
	return append([]float64(nil), f.taps...)
}
