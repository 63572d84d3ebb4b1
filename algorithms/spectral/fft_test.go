package spectral

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestFFTSinePeak(t *testing.T) {
	const n = 256
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Cos(2 * math.Pi * 8 * float64(i) / n)
	}

	spectrum := NewFFT().Compute(x)
	if got := cmplx.Abs(spectrum[8]); math.Abs(got-n/2) > 1e-9 {
		t.Fatalf("|X[8]| = %v, want %v", got, n/2)
	}
	if got := cmplx.Abs(spectrum[9]); got > 1e-9 {
		t.Fatalf("|X[9]| = %v, want 0", got)
	}
}

func TestFFTInverseRoundTrip(t *testing.T) {
	f := NewFFT()
	x := []float64{1, -2, 3, 0.5, 0, 7, -1}

	back := f.ComputeInverseReal(f.Compute(x))
	for i := range x {
		if math.Abs(back[i]-x[i]) > 1e-9 {
			t.Fatalf("round trip [%d] = %v, want %v", i, back[i], x[i])
		}
	}

	if got := f.ComputeComplex(nil); len(got) != 0 {
		t.Fatalf("ComputeComplex(nil) length = %d", len(got))
	}
}
