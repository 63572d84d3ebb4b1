// Package audio holds the in-memory sample representation shared by every
// pipeline stage.
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrNoChannels     = errors.New("audio buffer has no channels")
	ErrRaggedChannels = errors.New("audio buffer channels differ in length")
	ErrBadSampleRate  = errors.New("audio buffer sample rate must be positive")
)

// Buffer is planar float64 audio: Channels[c][i] is frame i of channel c.
// Samples are nominally in [-1, 1]. Buffers are treated as values: every
// operation returns a new Buffer and never aliases the receiver's samples.
type Buffer struct {
	Channels   [][]float64 `json:"-"`
	SampleRate int         `json:"sample_rate"`
}

// New validates and wraps planar channel data. The slices are not copied.
func New(channels [][]float64, sampleRate int) (Buffer, error) {
	b := Buffer{Channels: channels, SampleRate: sampleRate}
	if err := b.Validate(); err != nil {
		return Buffer{}, err
	}
	return b, nil
}

// FromInterleaved splits interleaved samples (L R L R ...) into a planar buffer.
// A trailing partial frame is dropped.
func FromInterleaved(samples []float64, numChannels, sampleRate int) (Buffer, error) {
	if numChannels <= 0 {
		return Buffer{}, ErrNoChannels
	}

	frames := len(samples) / numChannels
	channels := make([][]float64, numChannels)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}
	for i := range frames {
		base := i * numChannels
		for c := range numChannels {
			channels[c][i] = samples[base+c]
		}
	}

	return New(channels, sampleRate)
}

// Validate checks the shape invariants
func (b Buffer) Validate() error {
	if len(b.Channels) == 0 {
		return ErrNoChannels
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrBadSampleRate, b.SampleRate)
	}
	frames := len(b.Channels[0])
	for c, ch := range b.Channels[1:] {
		if len(ch) != frames {
			return fmt.Errorf("%w: channel %d has %d frames, channel 0 has %d",
				ErrRaggedChannels, c+1, len(ch), frames)
		}
	}
	return nil
}

// NumChannels returns the channel count
func (b Buffer) NumChannels() int { return len(b.Channels) }

// Frames returns the per-channel frame count
func (b Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length in time
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Clone returns a deep copy
func (b Buffer) Clone() Buffer {
	channels := make([][]float64, len(b.Channels))
	for c, ch := range b.Channels {
		channels[c] = append([]float64(nil), ch...)
	}
	return Buffer{Channels: channels, SampleRate: b.SampleRate}
}

// Interleave flattens the buffer into L R L R ... order
func (b Buffer) Interleave() []float64 {
	n := b.NumChannels()
	frames := b.Frames()
	out := make([]float64, frames*n)
	for c, ch := range b.Channels {
		for i, v := range ch {
			out[i*n+c] = v
		}
	}
	return out
}

// Mono returns the arithmetic mean across channels. A mono buffer yields a copy.
func (b Buffer) Mono() []float64 {
	frames := b.Frames()
	mono := make([]float64, frames)
	if len(b.Channels) == 0 {
		return mono
	}
	for _, ch := range b.Channels {
		floats.Add(mono, ch)
	}
	floats.Scale(1/float64(len(b.Channels)), mono)
	return mono
}

// Peak returns the maximum absolute sample across all channels
func (b Buffer) Peak() float64 {
	peak := 0.0
	for _, ch := range b.Channels {
		for _, v := range ch {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// Scale returns a copy with every sample multiplied by gain
func (b Buffer) Scale(gain float64) Buffer {
	out := b.Clone()
	for _, ch := range out.Channels {
		floats.Scale(gain, ch)
	}
	return out
}
