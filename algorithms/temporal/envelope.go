package temporal

import (
	"math"
)

// Envelope extracts frame-wise RMS envelopes
type Envelope struct{}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// ComputeRMSCentered computes the RMS envelope with frame i centered on
// sample i*hopSize. The signal is zero padded by frameSize/2 on both sides,
// so there are 1 + len(signal)/hopSize frames.
func (e *Envelope) ComputeRMSCentered(signal []float64, frameSize, hopSize int) []float64 {
	if frameSize <= 0 || hopSize <= 0 {
		return []float64{}
	}

	pad := frameSize / 2
	paddedLen := len(signal) + 2*pad
	if paddedLen < frameSize {
		return []float64{}
	}

	numFrames := (paddedLen-frameSize)/hopSize + 1
	envelope := make([]float64, numFrames)

	for i := range numFrames {
		// Frame in padded coordinates is [i*hop, i*hop+frameSize)
		start := i*hopSize - pad
		end := start + frameSize
		start = max(start, 0)
		end = min(end, len(signal))
		if start >= end {
			continue
		}
		envelope[i] = frameRMS(signal[start:end], frameSize)
	}

	return envelope
}

// frameRMS divides by the full frame length so zero padding counts as silence
func frameRMS(frame []float64, frameSize int) float64 {
	sumSquares := 0.0
	for _, v := range frame {
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(frameSize))
}
