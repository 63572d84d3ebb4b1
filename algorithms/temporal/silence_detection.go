package temporal

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// TrimConfig controls leading/trailing silence removal
type TrimConfig struct {
	FrameSize int     `json:"frame_size"`
	HopSize   int     `json:"hop_size"`
	TopDB     float64 `json:"top_db"` // frames more than TopDB below the loudest frame are silent
	Amin      float64 `json:"amin"`   // amplitude floor for the dB conversion
}

// DefaultTrimConfig returns the 2048/512 framing with a 40 dB threshold
func DefaultTrimConfig() TrimConfig {
	return TrimConfig{
		FrameSize: 2048,
		HopSize:   512,
		TopDB:     40,
		Amin:      1e-5,
	}
}

// SilenceDetection finds and strips silent edges of a signal
type SilenceDetection struct {
	config            TrimConfig
	envelopeExtractor *Envelope
}

// NewSilenceDetection creates a silence detector with the default framing
func NewSilenceDetection() *SilenceDetection {
	return NewSilenceDetectionWithConfig(DefaultTrimConfig())
}

// NewSilenceDetectionWithConfig creates a silence detector. Zero fields take
// their default values.
func NewSilenceDetectionWithConfig(config TrimConfig) *SilenceDetection {
	def := DefaultTrimConfig()
	if config.FrameSize <= 0 {
		config.FrameSize = def.FrameSize
	}
	if config.HopSize <= 0 {
		config.HopSize = def.HopSize
	}
	if config.TopDB <= 0 {
		config.TopDB = def.TopDB
	}
	if config.Amin <= 0 {
		config.Amin = def.Amin
	}

	return &SilenceDetection{
		config:            config,
		envelopeExtractor: NewEnvelope(),
	}
}

// NonSilentFrames flags each centered RMS frame that lies within TopDB of the
// loudest frame. A signal with no energy at all has no non-silent frames.
func (sd *SilenceDetection) NonSilentFrames(signal []float64) []bool {
	rms := sd.envelopeExtractor.ComputeRMSCentered(signal, sd.config.FrameSize, sd.config.HopSize)
	flags := make([]bool, len(rms))
	if len(rms) == 0 {
		return flags
	}

	peak := floats.Max(rms)
	if peak == 0 {
		return flags
	}

	ref := sd.toDB(peak)
	for i, v := range rms {
		flags[i] = sd.toDB(v)-ref > -sd.config.TopDB
	}
	return flags
}

// TrimBounds returns the sample range [start, end) left after removing
// leading and trailing silence. start == end when the whole signal is silent.
func (sd *SilenceDetection) TrimBounds(signal []float64) (start, end int) {
	flags := sd.NonSilentFrames(signal)

	first, last := -1, -1
	for i, ok := range flags {
		if !ok {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return 0, 0
	}

	start = min(first*sd.config.HopSize, len(signal))
	end = min((last+1)*sd.config.HopSize, len(signal))
	return start, end
}

// Trim returns the non-silent part of signal. The result aliases signal.
func (sd *SilenceDetection) Trim(signal []float64) []float64 {
	start, end := sd.TrimBounds(signal)
	return signal[start:end]
}

func (sd *SilenceDetection) toDB(amplitude float64) float64 {
	return 20 * math.Log10(math.Max(amplitude, sd.config.Amin))
}

// TrimSilence trims leading and trailing silence using the default framing
// and the given threshold.
func TrimSilence(signal []float64, topDB float64) []float64 {
	return NewSilenceDetectionWithConfig(TrimConfig{TopDB: topDB}).Trim(signal)
}
