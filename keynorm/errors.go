package keynorm

import (
	"errors"
	"fmt"
)

// Kind classifies why a file did not produce output
type Kind int

const (
	KindDecode Kind = iota + 1
	KindTooShort
	KindAnalysis
	KindSynthesis
	KindEncode
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindTooShort:
		return "too_short"
	case KindAnalysis:
		return "analysis"
	case KindSynthesis:
		return "synthesis"
	case KindEncode:
		return "encode"
	default:
		return "unknown"
	}
}

var (
	// ErrTooShort marks a file whose trimmed analysis window is below the
	// minimum duration. It is a policy skip rather than a failure.
	ErrTooShort = errors.New("audio too short after trimming silence")

	ErrRootOutOfRange = errors.New("root out of range [0, 11]")
	ErrBadTargetPeak  = errors.New("target peak must be in (0, 1]")
	ErrBadProfile     = errors.New("pitch-class profile has negative or non-finite values")
	ErrShapeMismatch  = errors.New("shifted buffer shape differs from input")
)

// FileError is a file-scoped pipeline error. It never aborts a batch.
type FileError struct {
	Path string
	Kind Kind
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err wraps a FileError of the given kind
func IsKind(err error, kind Kind) bool {
	var fe *FileError
	return errors.As(err, &fe) && fe.Kind == kind
}

// KindOf returns the kind of the FileError wrapped by err, or 0
func KindOf(err error) Kind {
	var fe *FileError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

func fileError(path string, kind Kind, err error) *FileError {
	return &FileError{Path: path, Kind: kind, Err: err}
}
