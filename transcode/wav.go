package transcode

import (
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	dspwav "github.com/mjibson/go-dsp/wav"
	"go.uber.org/multierr"

	"github.com/RyanBlaney/tonic/algorithms/common"
	"github.com/RyanBlaney/tonic/audio"
)

// WAV format tags from the fmt chunk
const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3
)

// SupportedBitDepths lists the PCM depths WriteWAV can produce
var SupportedBitDepths = []int{8, 16, 24, 32}

// ReadWAV decodes a WAV file into a float buffer in [-1, 1]. Integer PCM goes
// through go-audio; 32-bit IEEE float goes through go-dsp. Any other encoding
// returns ErrUnsupportedFormat so callers can fall back to ffmpeg.
func ReadWAV(path string) (buf audio.Buffer, err error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Buffer{}, err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	return DecodeWAV(f)
}

// DecodeWAV decodes WAV data from r
func DecodeWAV(r io.ReadSeeker) (audio.Buffer, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return audio.Buffer{}, fmt.Errorf("invalid wav header: %w", err)
	}
	if dec.NumChans == 0 {
		return audio.Buffer{}, fmt.Errorf("%w: wav declares no channels", ErrEmptyAudio)
	}
	if dec.SampleRate == 0 {
		return audio.Buffer{}, fmt.Errorf("invalid wav header: sample rate 0")
	}

	switch dec.WavAudioFormat {
	case wavFormatPCM:
		return decodePCM(dec)
	case wavFormatIEEEFloat:
		if dec.BitDepth != 32 {
			return audio.Buffer{}, fmt.Errorf("%w: %d-bit float wav", ErrUnsupportedFormat, dec.BitDepth)
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return audio.Buffer{}, err
		}
		return decodeFloat(r)
	default:
		return audio.Buffer{}, fmt.Errorf("%w: wav format tag 0x%04x", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
}

func decodePCM(dec *wav.Decoder) (audio.Buffer, error) {
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return audio.Buffer{}, fmt.Errorf("%w: %d-bit pcm wav", ErrUnsupportedFormat, bitDepth)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to read pcm data: %w", err)
	}
	if pcm == nil {
		return audio.Buffer{}, fmt.Errorf("failed to read pcm data: %w", dec.Err())
	}

	samples := make([]float64, len(pcm.Data))
	if bitDepth == 8 {
		// 8-bit wav is unsigned with a 128 midpoint
		for i, v := range pcm.Data {
			samples[i] = float64(v-128) / 128
		}
	} else {
		scale := 1 / math.Exp2(float64(bitDepth-1))
		for i, v := range pcm.Data {
			samples[i] = float64(v) * scale
		}
	}

	return audio.FromInterleaved(samples, int(dec.NumChans), int(dec.SampleRate))
}

func decodeFloat(r io.Reader) (audio.Buffer, error) {
	w, err := dspwav.New(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("invalid float wav: %w", err)
	}

	numChannels := int(w.NumChannels)
	if numChannels == 0 {
		return audio.Buffer{}, fmt.Errorf("%w: wav declares no channels", ErrEmptyAudio)
	}
	if w.Samples == 0 {
		return audio.New(make([][]float64, numChannels), int(w.SampleRate))
	}

	data, err := w.ReadSamples(w.Samples)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to read float samples: %w", err)
	}
	raw, ok := data.([]float32)
	if !ok {
		return audio.Buffer{}, fmt.Errorf("%w: unexpected float sample type %T", ErrUnsupportedFormat, data)
	}

	samples := make([]float64, len(raw))
	for i, v := range raw {
		samples[i] = float64(v)
	}
	return audio.FromInterleaved(samples, numChannels, int(w.SampleRate))
}

// WriteWAV encodes buf as integer PCM at the given bit depth. Samples are
// clipped to [-1, 1] before quantization. A partially written file is removed.
func WriteWAV(path string, buf audio.Buffer, bitDepth int) (err error) {
	if err := buf.Validate(); err != nil {
		return err
	}
	if !slices.Contains(SupportedBitDepths, bitDepth) {
		return fmt.Errorf("%w: %d-bit pcm output", ErrUnsupportedFormat, bitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	enc := wav.NewEncoder(f, buf.SampleRate, bitDepth, buf.NumChannels(), wavFormatPCM)
	if werr := enc.Write(quantize(buf, bitDepth)); werr != nil {
		return multierr.Combine(
			fmt.Errorf("failed to write pcm data: %w", werr),
			enc.Close(),
			f.Close(),
		)
	}

	return multierr.Combine(enc.Close(), f.Close())
}

func quantize(buf audio.Buffer, bitDepth int) *goaudio.IntBuffer {
	interleaved := buf.Interleave()
	data := make([]int, len(interleaved))

	scale := math.Exp2(float64(bitDepth-1)) - 1
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	for i, v := range interleaved {
		data[i] = int(math.Round(clip(v)*scale)) + offset
	}

	return &goaudio.IntBuffer{
		Data: data,
		Format: &goaudio.Format{
			NumChannels: buf.NumChannels(),
			SampleRate:  buf.SampleRate,
		},
		SourceBitDepth: bitDepth,
	}
}

func clip(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return common.Clamp(v, -1, 1)
}
