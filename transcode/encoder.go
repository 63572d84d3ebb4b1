package transcode

import (
	"bytes"
	"context"
	"strconv"

	"github.com/RyanBlaney/tonic/audio"
	"github.com/RyanBlaney/tonic/internal/exec"
	"github.com/RyanBlaney/tonic/logging"
)

// Encoder writes containers other than WAV by piping raw float64 samples
// into ffmpeg. The output codec follows from the file extension.
type Encoder struct {
	config *FFmpegConfig
	runner *exec.Runner
}

// NewEncoder creates a new ffmpeg-backed encoder
func NewEncoder(config *FFmpegConfig) *Encoder {
	if config == nil {
		config = DefaultFFmpegConfig()
	}
	return &Encoder{
		config: config,
		runner: exec.NewRunner(config.Timeout),
	}
}

// EncodeFile writes buf to filename, overwriting any existing file
func (e *Encoder) EncodeFile(ctx context.Context, filename string, buf audio.Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "audio_encoder",
		"function":  "EncodeFile",
		"filename":  filename,
	})

	_, err := e.runner.Run(ctx, exec.Command{
		Tool:  "ffmpeg",
		Stage: "encode",
		Path:  e.config.FFmpegPath,
		Args:  e.buildFFmpegArgs(filename, buf),
		Stdin: bytes.NewReader(float64ToBytes(buf.Interleave())),
	})
	if err != nil {
		return err
	}

	logger.Debug("Encoded audio", logging.Fields{
		"frames":   buf.Frames(),
		"channels": buf.NumChannels(),
	})
	return nil
}

func (e *Encoder) buildFFmpegArgs(filename string, buf audio.Buffer) []string {
	return []string{
		"-v", "error",
		"-y",
		"-f", "f64le",
		"-ar", strconv.Itoa(buf.SampleRate),
		"-ac", strconv.Itoa(buf.NumChannels()),
		"-i", "pipe:0",
		filename,
	}
}
