// Package keynorm detects the dominant pitch class of a recording and
// transposes it onto C.
package keynorm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// NumPitchClasses is the length of a Profile
const NumPitchClasses = 12

// NoteNames maps a pitch class to its sharp-spelled name
var NoteNames = [NumPitchClasses]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Profile is a time-averaged pitch-class energy vector: index 0 is C,
// each following index one semitone higher.
type Profile [NumPitchClasses]float64

// Validate rejects negative, NaN and infinite entries
func (p Profile) Validate() error {
	for i, v := range p {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: index %d = %v", ErrBadProfile, i, v)
		}
	}
	return nil
}

// EstimateRoot returns the index of the largest profile value. Ties go to the
// lowest index.
func EstimateRoot(p Profile) int {
	return floats.MaxIdx(p[:])
}

// RootName returns the note name of a pitch class, or "?" when out of range
func RootName(root int) string {
	if root < 0 || root >= NumPitchClasses {
		return "?"
	}
	return NoteNames[root]
}
