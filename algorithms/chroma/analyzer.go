package chroma

import (
	"sync"

	"github.com/RyanBlaney/tonic/algorithms/common"
)

// Analyzer turns a mono signal into a time-averaged pitch-class profile.
// Filter banks are built lazily per sample rate and shared between
// goroutines.
type Analyzer struct {
	config Config

	mu    sync.Mutex
	banks map[int]*ChromaCQT
}

// NewAnalyzer creates an analyzer. The configuration is validated up front.
func NewAnalyzer(config Config) (*Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{
		config: config,
		banks:  make(map[int]*ChromaCQT),
	}, nil
}

// Config returns the analyzer's filter bank settings
func (a *Analyzer) Config() Config {
	return a.config
}

// Profile returns the mean over frames of the max-normalized chromagram.
// Index 0 is C, 11 is B. Every entry is non-negative and entries are
// comparable to each other but not to other profiles.
func (a *Analyzer) Profile(signal []float64, sampleRate int) ([NumPitchClasses]float64, error) {
	var profile [NumPitchClasses]float64

	bank, err := a.bank(sampleRate)
	if err != nil {
		return profile, err
	}

	chromagram, err := bank.ComputeChroma(signal)
	if err != nil {
		return profile, err
	}

	copy(profile[:], common.ColumnMeans(chromagram, NumPitchClasses))
	return profile, nil
}

func (a *Analyzer) bank(sampleRate int) (*ChromaCQT, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if bank, ok := a.banks[sampleRate]; ok {
		return bank, nil
	}

	bank, err := NewChromaCQT(sampleRate, a.config)
	if err != nil {
		return nil, err
	}
	a.banks[sampleRate] = bank
	return bank, nil
}
