// Package transcode reads and writes audio files. WAV is handled in process;
// every other container goes through ffmpeg.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/RyanBlaney/tonic/audio"
	"github.com/RyanBlaney/tonic/logging"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyAudio        = errors.New("no audio data")
)

var wavExtensions = []string{".wav", ".wave"}

// IsWAV reports whether path has a WAV extension (case-insensitive)
func IsWAV(path string) bool {
	return slices.Contains(wavExtensions, strings.ToLower(filepath.Ext(path)))
}

// Codec decodes and encodes by file extension
type Codec struct {
	bitDepth int
	decoder  *Decoder
	encoder  *Encoder
}

// NewCodec creates a codec writing WAV at bitDepth and using ffmpeg for the rest
func NewCodec(config *FFmpegConfig, bitDepth int) (*Codec, error) {
	if !slices.Contains(SupportedBitDepths, bitDepth) {
		return nil, fmt.Errorf("%w: %d-bit pcm output", ErrUnsupportedFormat, bitDepth)
	}
	return &Codec{
		bitDepth: bitDepth,
		decoder:  NewDecoder(config),
		encoder:  NewEncoder(config),
	}, nil
}

// Decode reads path at its native sample rate and channel count. WAV files
// that the in-process reader cannot handle are retried through ffmpeg.
func (c *Codec) Decode(ctx context.Context, path string) (audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}
	if !IsWAV(path) {
		return c.decoder.DecodeFile(ctx, path)
	}

	buf, err := ReadWAV(path)
	if errors.Is(err, ErrUnsupportedFormat) {
		logging.WithContext(ctx).Debug("Falling back to ffmpeg for wav", logging.Fields{
			"component": "codec",
			"file":      path,
			"reason":    err.Error(),
		})
		return c.decoder.DecodeFile(ctx, path)
	}
	return buf, err
}

// Encode writes buf to path, choosing the format from the extension
func (c *Codec) Encode(ctx context.Context, path string, buf audio.Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if IsWAV(path) {
		return WriteWAV(path, buf, c.bitDepth)
	}
	return c.encoder.EncodeFile(ctx, path, buf)
}

// BitDepth returns the PCM depth used for WAV output
func (c *Codec) BitDepth() int {
	return c.bitDepth
}
