package keynorm

import (
	"fmt"

	"github.com/RyanBlaney/tonic/audio"
)

// PlanTransposition returns the semitone shift that maps root onto C.
// The result is always -root, so it lies in [-11, 0].
func PlanTransposition(root int) (int, error) {
	if root < 0 || root >= NumPitchClasses {
		return 0, fmt.Errorf("%w: %d", ErrRootOutOfRange, root)
	}
	return -root, nil
}

// NormalizePeak applies one gain to every sample of every channel so the
// largest absolute sample equals target. A silent buffer is returned as is.
func NormalizePeak(buf audio.Buffer, target float64) (audio.Buffer, error) {
	if !(target > 0 && target <= 1) {
		return buf, fmt.Errorf("%w: %g", ErrBadTargetPeak, target)
	}

	peak := buf.Peak()
	if peak == 0 {
		return buf, nil
	}
	return buf.Scale(target / peak), nil
}
