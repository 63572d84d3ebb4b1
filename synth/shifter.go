// Package synth provides constant-duration pitch shifters: an in-process
// phase vocoder and an adapter for the rubberband command line tool.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/tonic/audio"
)

// MaxSemitones bounds the shift magnitude either shifter accepts
const MaxSemitones = 24

var (
	ErrShiftOutOfRange = errors.New("pitch shift out of range")
	ErrUnknownOption   = errors.New("unknown synthesis option")
)

// Shifter changes pitch by a number of semitones while keeping duration,
// channel count and sample rate.
type Shifter interface {
	Shift(ctx context.Context, buf audio.Buffer, semitones float64, hints Hints) (audio.Buffer, error)
}

// Quality trades speed for smoothness
type Quality int

const (
	QualityHigh Quality = iota
	QualityStandard
)

func (q Quality) String() string {
	switch q {
	case QualityHigh:
		return "high"
	case QualityStandard:
		return "standard"
	default:
		return "unknown"
	}
}

// ParseQuality maps "high" or "standard"
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "high":
		return QualityHigh, nil
	case "standard":
		return QualityStandard, nil
	default:
		return 0, fmt.Errorf("%w: quality %q", ErrUnknownOption, s)
	}
}

// Transients selects how onsets are treated
type Transients int

const (
	TransientsCrisp Transients = iota
	TransientsMixed
	TransientsSmooth
)

func (t Transients) String() string {
	switch t {
	case TransientsCrisp:
		return "crisp"
	case TransientsMixed:
		return "mixed"
	case TransientsSmooth:
		return "smooth"
	default:
		return "unknown"
	}
}

// ParseTransients maps "crisp", "mixed" or "smooth"
func ParseTransients(s string) (Transients, error) {
	switch s {
	case "crisp":
		return TransientsCrisp, nil
	case "mixed":
		return TransientsMixed, nil
	case "smooth":
		return TransientsSmooth, nil
	default:
		return 0, fmt.Errorf("%w: transients %q", ErrUnknownOption, s)
	}
}

// Hints are advisory: a shifter applies the ones it supports and ignores the rest
type Hints struct {
	Quality          Quality
	Transients       Transients
	PreserveFormants bool
}

// DefaultHints returns high quality with crisp transients
func DefaultHints() Hints {
	return Hints{Quality: QualityHigh, Transients: TransientsCrisp}
}

// Ratio converts semitones to a frequency ratio
func Ratio(semitones float64) float64 {
	return math.Exp2(semitones / 12)
}

func validateShift(buf audio.Buffer, semitones float64) error {
	if math.IsNaN(semitones) || math.IsInf(semitones, 0) || math.Abs(semitones) > MaxSemitones {
		return fmt.Errorf("%w: %v semitones (limit ±%d)", ErrShiftOutOfRange, semitones, MaxSemitones)
	}
	return buf.Validate()
}
