package keynorm

import "time"

// State is how far a file got through the pipeline
type State int

const (
	StatePending State = iota
	StateDecoded
	StateTrimmed
	StateAnalyzed
	StateRootChosen
	StateShifted
	StateNormalized
	StateWritten
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDecoded:
		return "decoded"
	case StateTrimmed:
		return "trimmed"
	case StateAnalyzed:
		return "analyzed"
	case StateRootChosen:
		return "root_chosen"
	case StateShifted:
		return "shifted"
	case StateNormalized:
		return "normalized"
	case StateWritten:
		return "written"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome values reported per file
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Result records what happened to one input file. Root is -1 until a root
// has been chosen.
type Result struct {
	Input      string        `json:"input"`
	Output     string        `json:"output"`
	State      State         `json:"state"`
	Root       int           `json:"root"`
	RootName   string        `json:"root_name"`
	Shift      int           `json:"shift"`
	Frames     int           `json:"frames"`
	SampleRate int           `json:"sample_rate"`
	Elapsed    time.Duration `json:"elapsed"`
	Err        error         `json:"-"`
}

// Outcome classifies the result as written, skipped or failed
func (r Result) Outcome() string {
	switch {
	case r.Err == nil && r.State == StateWritten:
		return OutcomeWritten
	case r.State == StateSkipped:
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}
