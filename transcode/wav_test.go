package transcode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/tonic/audio"
)

func sine(freq float64, sampleRate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestWAVRoundTrip(t *testing.T) {
	tests := []struct {
		bitDepth  int
		tolerance float64
	}{
		{8, 0.02},
		{16, 1e-4},
		{24, 1e-6},
		{32, 1e-8},
	}

	left := sine(440, 8000, 800, 0.8)
	right := sine(660, 8000, 800, -0.5)
	in, err := audio.New([][]float64{left, right}, 8000)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "tone.wav")
		if err := WriteWAV(path, in, tt.bitDepth); err != nil {
			t.Fatalf("%d-bit WriteWAV() error = %v", tt.bitDepth, err)
		}

		out, err := ReadWAV(path)
		if err != nil {
			t.Fatalf("%d-bit ReadWAV() error = %v", tt.bitDepth, err)
		}
		if out.SampleRate != 8000 || out.NumChannels() != 2 || out.Frames() != 800 {
			t.Fatalf("%d-bit shape = %d Hz, %d ch, %d frames", tt.bitDepth,
				out.SampleRate, out.NumChannels(), out.Frames())
		}
		for c := range in.Channels {
			for i := range in.Channels[c] {
				if d := math.Abs(out.Channels[c][i] - in.Channels[c][i]); d > tt.tolerance {
					t.Fatalf("%d-bit channel %d sample %d off by %g", tt.bitDepth, c, i, d)
				}
			}
		}
	}
}

func TestWriteWAVClips(t *testing.T) {
	in, _ := audio.New([][]float64{{2, -3, 0.5, math.NaN()}}, 8000)
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := WriteWAV(path, in, 16); err != nil {
		t.Fatal(err)
	}

	out, err := ReadWAV(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{32767.0 / 32768, -32767.0 / 32768, 0.5, 0}
	for i, w := range want {
		if math.Abs(out.Channels[0][i]-w) > 1e-4 {
			t.Errorf("sample %d = %v, want %v", i, out.Channels[0][i], w)
		}
	}
}

func TestWriteWAVRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	in, _ := audio.New([][]float64{{0.1}}, 8000)

	err := WriteWAV(filepath.Join(dir, "a.wav"), in, 12)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("12-bit error = %v, want ErrUnsupportedFormat", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "a.wav")); !os.IsNotExist(statErr) {
		t.Error("rejected write left a file behind")
	}

	if err := WriteWAV(filepath.Join(dir, "b.wav"), audio.Buffer{SampleRate: 8000}, 16); !errors.Is(err, audio.ErrNoChannels) {
		t.Errorf("empty buffer error = %v, want ErrNoChannels", err)
	}
}

func TestWAVEmptyDataChunk(t *testing.T) {
	in, _ := audio.New([][]float64{{}}, 22050)
	path := filepath.Join(t.TempDir(), "empty.wav")
	if err := WriteWAV(path, in, 16); err != nil {
		t.Fatal(err)
	}

	out, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV() error = %v", err)
	}
	if out.Frames() != 0 || out.SampleRate != 22050 {
		t.Fatalf("got %d frames at %d Hz", out.Frames(), out.SampleRate)
	}
}

// floatWAV builds a 32-bit IEEE float WAV in memory
func floatWAV(t *testing.T, samples []float32, channels, sampleRate int) []byte {
	t.Helper()
	var b bytes.Buffer
	dataSize := len(samples) * 4
	write := func(v any) {
		if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}

	b.WriteString("RIFF")
	write(uint32(36 + dataSize))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	write(uint32(16))
	write(uint16(wavFormatIEEEFloat))
	write(uint16(channels))
	write(uint32(sampleRate))
	write(uint32(sampleRate * channels * 4))
	write(uint16(channels * 4))
	write(uint16(32))
	b.WriteString("data")
	write(uint32(dataSize))
	write(samples)
	return b.Bytes()
}

func TestDecodeFloatWAV(t *testing.T) {
	data := floatWAV(t, []float32{0.25, -0.5, 1, -1, 0.75, 0}, 2, 48000)

	buf, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if buf.SampleRate != 48000 || buf.NumChannels() != 2 || buf.Frames() != 3 {
		t.Fatalf("shape = %d Hz, %d ch, %d frames", buf.SampleRate, buf.NumChannels(), buf.Frames())
	}

	wantL := []float64{0.25, 1, 0.75}
	wantR := []float64{-0.5, -1, 0}
	for i := range wantL {
		if buf.Channels[0][i] != wantL[i] || buf.Channels[1][i] != wantR[i] {
			t.Errorf("frame %d = (%v, %v), want (%v, %v)", i,
				buf.Channels[0][i], buf.Channels[1][i], wantL[i], wantR[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV(bytes.NewReader([]byte("definitely not a wav file"))); err == nil {
		t.Fatal("DecodeWAV() accepted garbage")
	}
}
