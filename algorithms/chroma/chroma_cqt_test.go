package chroma

import (
	"errors"
	"math"
	"sync"
	"testing"
)

const testRate = 22050

// midiFreq returns the equal-tempered frequency of a MIDI note at A440
func midiFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func tones(rate, n int, notes ...int) []float64 {
	out := make([]float64, n)
	for _, note := range notes {
		f := midiFreq(note)
		for i := range out {
			out[i] += 0.3 * math.Sin(2*math.Pi*f*float64(i)/float64(rate))
		}
	}
	return out
}

func argmax(v [NumPitchClasses]float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bins not multiple of 12", mutate: func(c *Config) { c.BinsPerOctave = 30 }},
		{name: "zero hop", mutate: func(c *Config) { c.HopSize = 0 }},
		{name: "negative fmin", mutate: func(c *Config) { c.MinFreq = -1 }},
		{name: "no octaves", mutate: func(c *Config) { c.Octaves = 0 }},
		{name: "sparsity", mutate: func(c *Config) { c.SparsityThreshold = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestFilterBankLayout(t *testing.T) {
	cqt, err := NewChromaCQT(testRate, DefaultConfig())
	if err != nil {
		t.Fatalf("NewChromaCQT() error = %v", err)
	}

	freqs := cqt.GetCQTFrequencies()
	if len(freqs) != 7*36 {
		t.Fatalf("got %d bins, want %d", len(freqs), 7*36)
	}
	if math.Abs(freqs[0]-32.703) > 1e-3 {
		t.Errorf("first bin = %v, want C1", freqs[0])
	}
	if math.Abs(freqs[36]/freqs[0]-2) > 1e-12 {
		t.Errorf("bin 36 / bin 0 = %v, want one octave", freqs[36]/freqs[0])
	}

	// A4 (MIDI 69) is bin 3*(69-24) and folds to pitch class 9
	if pc := cqt.pitchClass[3*(69-24)]; pc != 9 {
		t.Errorf("pitch class of A4 bin = %d, want 9", pc)
	}
	// Side bins a third of a semitone away fold to the same class
	if cqt.pitchClass[3*(69-24)-1] != 9 || cqt.pitchClass[3*(69-24)+1] != 9 {
		t.Error("neighbouring bins of A4 left pitch class 9")
	}

	for _, oct := range cqt.octaves {
		if 512%oct.factor != 0 {
			t.Errorf("decimation factor %d does not divide the hop", oct.factor)
		}
	}
}

func TestFilterBankDropsBinsAboveNyquist(t *testing.T) {
	cqt, err := NewChromaCQT(8000, DefaultConfig())
	if err != nil {
		t.Fatalf("NewChromaCQT() error = %v", err)
	}
	freqs := cqt.GetCQTFrequencies()
	if top := freqs[len(freqs)-1]; top >= 4000 {
		t.Fatalf("top bin %v is above Nyquist", top)
	}
	if len(freqs) >= 7*36 {
		t.Fatalf("expected some bins dropped at 8 kHz, got %d", len(freqs))
	}
}

func TestComputeChromaShape(t *testing.T) {
	cqt, _ := NewChromaCQT(testRate, DefaultConfig())

	chromagram, err := cqt.ComputeChroma(tones(testRate, testRate/2, 69))
	if err != nil {
		t.Fatalf("ComputeChroma() error = %v", err)
	}
	if want := 1 + (testRate/2)/512; len(chromagram) != want {
		t.Fatalf("got %d frames, want %d", len(chromagram), want)
	}
	for i, frame := range chromagram {
		peak := 0.0
		for _, v := range frame {
			if v < 0 {
				t.Fatalf("frame %d has a negative entry", i)
			}
			peak = math.Max(peak, v)
		}
		if math.Abs(peak-1) > 1e-12 {
			t.Fatalf("frame %d max = %v, want 1", i, peak)
		}
	}

	if _, err := cqt.ComputeChroma(nil); !errors.Is(err, ErrEmptySignal) {
		t.Fatalf("ComputeChroma(nil) error = %v, want ErrEmptySignal", err)
	}
}

func TestProfilePicksPitchClass(t *testing.T) {
	analyzer, err := NewAnalyzer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}

	tests := []struct {
		name  string
		notes []int
		rate  int
		want  int
	}{
		{name: "A4 sine", notes: []int{69}, rate: testRate, want: 9},
		{name: "C4 sine", notes: []int{60}, rate: testRate, want: 0},
		{name: "E3 sine at 44.1k", notes: []int{52}, rate: 44100, want: 4},
		{name: "G2 octave stack", notes: []int{43, 55, 67}, rate: testRate, want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := analyzer.Profile(tones(tt.rate, tt.rate, tt.notes...), tt.rate)
			if err != nil {
				t.Fatalf("Profile() error = %v", err)
			}
			if got := argmax(profile); got != tt.want {
				t.Fatalf("argmax = %d, want %d (profile %v)", got, tt.want, profile)
			}
		})
	}
}

func TestProfileSilenceIsZero(t *testing.T) {
	analyzer, _ := NewAnalyzer(DefaultConfig())
	profile, err := analyzer.Profile(make([]float64, 4096), testRate)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	for i, v := range profile {
		if v != 0 {
			t.Fatalf("profile[%d] = %v, want 0", i, v)
		}
	}
}

func TestAnalyzerConcurrentUse(t *testing.T) {
	analyzer, _ := NewAnalyzer(DefaultConfig())
	signal := tones(testRate, testRate/4, 62)

	var wg sync.WaitGroup
	results := make([]int, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			profile, err := analyzer.Profile(signal, testRate)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = argmax(profile)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != 2 {
			t.Errorf("goroutine %d argmax = %d, want 2", i, got)
		}
	}
	if len(analyzer.banks) != 1 {
		t.Errorf("built %d filter banks, want 1", len(analyzer.banks))
	}
}

func TestAnalyzerRejectsBadRate(t *testing.T) {
	analyzer, _ := NewAnalyzer(DefaultConfig())
	if _, err := analyzer.Profile([]float64{0.1}, 0); !errors.Is(err, ErrBadSampleRate) {
		t.Fatalf("Profile() error = %v, want ErrBadSampleRate", err)
	}
}
