package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name     string
		channels [][]float64
		rate     int
		wantErr  error
	}{
		{name: "mono", channels: [][]float64{{0, 1}}, rate: 8000},
		{name: "stereo", channels: [][]float64{{0, 1}, {1, 0}}, rate: 8000},
		{name: "no channels", channels: nil, rate: 8000, wantErr: ErrNoChannels},
		{name: "ragged", channels: [][]float64{{0, 1}, {1}}, rate: 8000, wantErr: ErrRaggedChannels},
		{name: "zero rate", channels: [][]float64{{0}}, rate: 0, wantErr: ErrBadSampleRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.channels, tt.rate)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInterleaveRoundTrip(t *testing.T) {
	interleaved := []float64{0.1, -0.1, 0.2, -0.2, 0.3, -0.3, 0.4}

	b, err := FromInterleaved(interleaved, 2, 44100)
	if err != nil {
		t.Fatalf("FromInterleaved() error = %v", err)
	}
	if b.Frames() != 3 {
		t.Fatalf("Frames() = %d, want 3 (partial frame dropped)", b.Frames())
	}
	if b.Channels[1][2] != -0.3 {
		t.Fatalf("Channels[1][2] = %v, want -0.3", b.Channels[1][2])
	}

	back := b.Interleave()
	for i, v := range back {
		if v != interleaved[i] {
			t.Fatalf("Interleave()[%d] = %v, want %v", i, v, interleaved[i])
		}
	}
}

func TestMonoIsChannelMean(t *testing.T) {
	b, _ := New([][]float64{{1, 0.5, -1}, {0, 0.5, 1}}, 100)
	mono := b.Mono()
	want := []float64{0.5, 0.5, 0}
	for i := range want {
		if math.Abs(mono[i]-want[i]) > 1e-12 {
			t.Fatalf("Mono()[%d] = %v, want %v", i, mono[i], want[i])
		}
	}

	mono[0] = 42
	if b.Channels[0][0] != 1 {
		t.Fatal("Mono() aliased the source channel")
	}
}

func TestCloneAndScaleDoNotAlias(t *testing.T) {
	b, _ := New([][]float64{{0.25, -0.5}}, 100)

	scaled := b.Scale(2)
	if scaled.Channels[0][1] != -1 {
		t.Fatalf("Scale(2) sample = %v, want -1", scaled.Channels[0][1])
	}
	if b.Channels[0][1] != -0.5 {
		t.Fatal("Scale mutated the receiver")
	}
	if got := scaled.Peak(); got != 1 {
		t.Fatalf("Peak() = %v, want 1", got)
	}
}

func TestDuration(t *testing.T) {
	b, _ := New([][]float64{make([]float64, 22050)}, 44100)
	if got := b.Duration(); got != 500*time.Millisecond {
		t.Fatalf("Duration() = %v, want 500ms", got)
	}
}
