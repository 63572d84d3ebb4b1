package chroma

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/tonic/algorithms/common"
	"github.com/RyanBlaney/tonic/algorithms/filters"
	"github.com/RyanBlaney/tonic/algorithms/spectral"
	"github.com/mjibson/go-dsp/window"
)

// NumPitchClasses is the size of a chroma vector, C through B
const NumPitchClasses = 12

var (
	ErrEmptySignal   = errors.New("chroma: empty signal")
	ErrBadSampleRate = errors.New("chroma: sample rate must be positive")
	ErrNoUsableBins  = errors.New("chroma: no constant-Q bins below the Nyquist frequency")
	ErrInvalidConfig = errors.New("chroma: invalid configuration")
)

// Config describes the constant-Q filter bank
type Config struct {
	MinFreq           float64 `json:"min_freq"`           // lowest bin at A440 tuning, C1 by default
	Octaves           int     `json:"octaves"`            // number of octaves above MinFreq
	BinsPerOctave     int     `json:"bins_per_octave"`    // multiple of 12
	HopSize           int     `json:"hop_size"`           // samples between frame centers
	TuningFreq        float64 `json:"tuning_freq"`        // reference A4
	SparsityThreshold float64 `json:"sparsity_threshold"` // spectral kernel entries below this fraction of the kernel peak are dropped
}

// DefaultConfig returns seven octaves from C1 at 36 bins per octave
func DefaultConfig() Config {
	return Config{
		MinFreq:           32.703195662574764,
		Octaves:           7,
		BinsPerOctave:     36,
		HopSize:           512,
		TuningFreq:        440.0,
		SparsityThreshold: 0.0054,
	}
}

// Validate checks that the filter bank can be built
func (c Config) Validate() error {
	switch {
	case c.MinFreq <= 0:
		return fmt.Errorf("%w: min_freq must be positive", ErrInvalidConfig)
	case c.Octaves <= 0:
		return fmt.Errorf("%w: octaves must be positive", ErrInvalidConfig)
	case c.BinsPerOctave <= 0 || c.BinsPerOctave%NumPitchClasses != 0:
		return fmt.Errorf("%w: bins_per_octave must be a positive multiple of 12", ErrInvalidConfig)
	case c.HopSize <= 0:
		return fmt.Errorf("%w: hop_size must be positive", ErrInvalidConfig)
	case c.TuningFreq <= 0:
		return fmt.Errorf("%w: tuning_freq must be positive", ErrInvalidConfig)
	case c.SparsityThreshold < 0 || c.SparsityThreshold >= 1:
		return fmt.Errorf("%w: sparsity_threshold must be in [0, 1)", ErrInvalidConfig)
	}
	return nil
}

// ChromaCQT computes a chromagram from a constant-Q transform.
//
// Bin k has center frequency f_k = f_min * 2^(k/B) and a Hann-windowed complex
// kernel of length ceil(Q*sr/f_k) with Q = 1/(2^(1/B)-1). Kernels are applied
// in the frequency domain as sparse spectral kernels (Brown & Puckette 1992).
//
// Each octave is evaluated on a copy of the signal decimated as far as its
// top bin allows, which keeps every octave's FFT short. Frame i of every
// octave is centered on input sample i*hop.
type ChromaCQT struct {
	config     Config
	sampleRate int
	fft        *spectral.FFT
	decimator  *filters.LowpassFIR

	freqBins    []float64 // center frequency of every usable bin
	pitchClass  []int     // pitch class of every usable bin
	octaves     []octaveKernels
	maxDecimate int
}

type octaveKernels struct {
	factor  int // decimation relative to the input rate
	fftSize int
	first   int // index of the octave's first bin in freqBins
	kernels []sparseKernel
}

type sparseKernel struct {
	index []int
	value []complex128 // conj(K[m]) / fftSize
}

// NewChromaCQT builds the filter bank for one sample rate
func NewChromaCQT(sampleRate int, config Config) (*ChromaCQT, error) {
	if sampleRate <= 0 {
		return nil, ErrBadSampleRate
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cqt := &ChromaCQT{
		config:     config,
		sampleRate: sampleRate,
		fft:        spectral.NewFFT(),
		decimator:  filters.NewHalfbandDecimator(),
	}
	cqt.computeKernels()

	if len(cqt.freqBins) == 0 {
		return nil, ErrNoUsableBins
	}
	return cqt, nil
}

// QFactor returns the constant ratio of center frequency to bandwidth
func (cqt *ChromaCQT) QFactor() float64 {
	return 1.0 / (math.Pow(2.0, 1.0/float64(cqt.config.BinsPerOctave)) - 1.0)
}

func (cqt *ChromaCQT) computeKernels() {
	cfg := cqt.config
	sr := float64(cqt.sampleRate)
	nyquist := sr / 2
	q := cqt.QFactor()
	fmin := cfg.MinFreq * cfg.TuningFreq / 440.0

	for o := range cfg.Octaves {
		factor := cqt.decimationFactor(fmin * math.Pow(2, float64(o+1)))
		rate := sr / float64(factor)

		oct := octaveKernels{factor: factor, first: len(cqt.freqBins)}
		var freqs []float64
		for b := range cfg.BinsPerOctave {
			k := o*cfg.BinsPerOctave + b
			f := fmin * math.Pow(2, float64(k)/float64(cfg.BinsPerOctave))
			if f >= nyquist {
				break
			}
			freqs = append(freqs, f)
		}
		if len(freqs) == 0 {
			break
		}

		longest := int(math.Ceil(q * rate / freqs[0]))
		oct.fftSize = common.NextPowerOfTwo(longest)

		for _, f := range freqs {
			oct.kernels = append(oct.kernels, cqt.spectralKernel(f, rate, q, oct.fftSize))
			cqt.freqBins = append(cqt.freqBins, f)
			cqt.pitchClass = append(cqt.pitchClass, cqt.frequencyToPitchClass(f))
		}

		cqt.octaves = append(cqt.octaves, oct)
		cqt.maxDecimate = max(cqt.maxDecimate, factor)
	}
}

// decimationFactor picks the largest power of two that divides the hop and
// keeps topFreq inside the decimator's passband.
func (cqt *ChromaCQT) decimationFactor(topFreq float64) int {
	factor := 1
	for {
		next := factor * 2
		if cqt.config.HopSize%next != 0 {
			return factor
		}
		if topFreq > 0.4*float64(cqt.sampleRate)/float64(next) {
			return factor
		}
		factor = next
	}
}

// spectralKernel builds the time-domain kernel centered in an fftSize buffer
// and keeps its significant FFT coefficients.
func (cqt *ChromaCQT) spectralKernel(freq, rate, q float64, fftSize int) sparseKernel {
	length := int(math.Ceil(q * rate / freq))
	length = min(length, fftSize)
	w := window.Hann(length)

	temporal := make([]complex128, fftSize)
	start := (fftSize - length) / 2
	for n := range length {
		phase := 2 * math.Pi * freq * float64(n) / rate
		temporal[start+n] = complex(w[n]/float64(length), 0) * cmplx.Exp(complex(0, phase))
	}

	spectrum := cqt.fft.ComputeComplex(temporal)
	peak := 0.0
	for _, v := range spectrum {
		peak = math.Max(peak, cmplx.Abs(v))
	}

	var kernel sparseKernel
	threshold := cqt.config.SparsityThreshold * peak
	for m, v := range spectrum {
		if cmplx.Abs(v) < threshold {
			continue
		}
		kernel.index = append(kernel.index, m)
		kernel.value = append(kernel.value, cmplx.Conj(v)/complex(float64(fftSize), 0))
	}
	return kernel
}

// frequencyToPitchClass folds a frequency onto C=0 ... B=11
func (cqt *ChromaCQT) frequencyToPitchClass(freq float64) int {
	midi := 69.0 + 12.0*math.Log2(freq/cqt.config.TuningFreq)
	pc := int(math.Round(midi)) % NumPitchClasses
	if pc < 0 {
		pc += NumPitchClasses
	}
	return pc
}

// NumFrames returns the number of centered frames for a signal length
func (cqt *ChromaCQT) NumFrames(signalLength int) int {
	return 1 + signalLength/cqt.config.HopSize
}

// ComputeCQT returns constant-Q magnitudes indexed [frame][bin]
func (cqt *ChromaCQT) ComputeCQT(signal []float64) ([][]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptySignal
	}

	numFrames := cqt.NumFrames(len(signal))
	spectrogram := make([][]float64, numFrames)
	for t := range spectrogram {
		spectrogram[t] = make([]float64, len(cqt.freqBins))
	}

	decimated := cqt.decimationLadder(signal)
	for _, oct := range cqt.octaves {
		x := decimated[oct.factor]
		hop := cqt.config.HopSize / oct.factor
		frame := make([]float64, oct.fftSize)

		for t := range numFrames {
			offset := t*hop - oct.fftSize/2
			for j := range frame {
				idx := offset + j
				if idx >= 0 && idx < len(x) {
					frame[j] = x[idx]
				} else {
					frame[j] = 0
				}
			}

			spectrum := cqt.fft.Compute(frame)
			for b, kernel := range oct.kernels {
				var acc complex128
				for i, m := range kernel.index {
					acc += spectrum[m] * kernel.value[i]
				}
				spectrogram[t][oct.first+b] = cmplx.Abs(acc)
			}
		}
	}

	return spectrogram, nil
}

// decimationLadder returns the signal at every power-of-two factor up to
// the largest one any octave needs
func (cqt *ChromaCQT) decimationLadder(signal []float64) map[int][]float64 {
	ladder := map[int][]float64{1: signal}
	current := signal
	for factor := 2; factor <= cqt.maxDecimate; factor *= 2 {
		current = cqt.decimator.Decimate(current, 2)
		ladder[factor] = current
	}
	return ladder
}

// ComputeChroma returns one max-normalized 12-bin vector per frame.
// Magnitudes of all bins sharing a pitch class are summed; frames with no
// energy stay all zero.
func (cqt *ChromaCQT) ComputeChroma(signal []float64) ([][]float64, error) {
	spectrogram, err := cqt.ComputeCQT(signal)
	if err != nil {
		return nil, err
	}

	chromagram := make([][]float64, len(spectrogram))
	for t, frame := range spectrogram {
		chroma := make([]float64, NumPitchClasses)
		for k, mag := range frame {
			chroma[cqt.pitchClass[k]] += mag
		}
		common.MaxNormalize(chroma)
		chromagram[t] = chroma
	}
	return chromagram, nil
}

// GetCQTFrequencies returns the center frequency of every usable bin
func (cqt *ChromaCQT) GetCQTFrequencies() []float64 {
	return append([]float64(nil), cqt.freqBins...)
}

// GetChromaLabels returns the chroma bin labels
func (cqt *ChromaCQT) GetChromaLabels() []string {
	return []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
}
