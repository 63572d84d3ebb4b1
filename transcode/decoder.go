package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/RyanBlaney/tonic/audio"
	"github.com/RyanBlaney/tonic/internal/exec"
	"github.com/RyanBlaney/tonic/logging"
)

// FFmpegConfig holds the external tool settings shared by Decoder and Encoder
type FFmpegConfig struct {
	FFmpegPath  string        `json:"ffmpeg_path"`  // Path to ffmpeg binary
	FFprobePath string        `json:"ffprobe_path"` // Path to ffprobe binary
	Timeout     time.Duration `json:"timeout"`      // Timeout for each ffmpeg/ffprobe run
}

// DefaultFFmpegConfig returns default ffmpeg configuration
func DefaultFFmpegConfig() *FFmpegConfig {
	return &FFmpegConfig{
		FFmpegPath:  "ffmpeg",  // Assume in PATH
		FFprobePath: "ffprobe", // Assume in PATH
		Timeout:     5 * time.Minute,
	}
}

// AudioMetadata is what ffprobe reports about the first audio stream
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// Decoder reads any container ffmpeg understands at its native sample rate
// and channel count
type Decoder struct {
	config *FFmpegConfig
	runner *exec.Runner
}

// NewDecoder creates a new ffmpeg-backed decoder
func NewDecoder(config *FFmpegConfig) *Decoder {
	if config == nil {
		config = DefaultFFmpegConfig()
	}
	return &Decoder{
		config: config,
		runner: exec.NewRunner(config.Timeout),
	}
}

// DecodeFile probes filename for its native format and decodes it to float samples
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (audio.Buffer, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	metadata, err := d.Probe(ctx, filename)
	if err != nil {
		return audio.Buffer{}, err
	}

	logger.Debug("Probed audio stream", logging.Fields{
		"sample_rate": metadata.SampleRate,
		"channels":    metadata.Channels,
		"codec":       metadata.Codec,
	})

	res, err := d.runner.Run(ctx, exec.Command{
		Tool:  "ffmpeg",
		Stage: "decode",
		Path:  d.config.FFmpegPath,
		Args:  d.buildFFmpegArgs(filename, metadata),
	})
	if err != nil {
		return audio.Buffer{}, err
	}

	samples := bytesToFloat64(res.Stdout)
	buf, err := audio.FromInterleaved(samples, metadata.Channels, metadata.SampleRate)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("ffmpeg output: %w", err)
	}

	logger.Debug("Decoded audio", logging.Fields{
		"frames":      buf.Frames(),
		"duration_ms": buf.Duration().Milliseconds(),
	})

	return buf, nil
}

// Probe uses ffprobe to get audio information from a file
func (d *Decoder) Probe(ctx context.Context, filename string) (*AudioMetadata, error) {
	res, err := d.runner.Run(ctx, exec.Command{
		Tool:  "ffprobe",
		Stage: "probe",
		Path:  d.config.FFprobePath,
		Args: []string{
			"-v", "quiet", // Suppress verbose output
			"-print_format", "json", // JSON output
			"-show_streams",          // Show stream info
			"-select_streams", "a:0", // First audio stream only
			filename,
		},
	})
	if err != nil {
		return nil, err
	}

	return parseFFprobeOutput(res.Stdout)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: no audio streams found", ErrEmptyAudio)
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	// The native rate is kept end to end, so there is no fallback here
	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %q", stream.SampleRate)
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildFFmpegArgs requests raw float64 output at the probed rate and layout
func (d *Decoder) buildFFmpegArgs(filename string, metadata *AudioMetadata) []string {
	return []string{
		"-v", "error",
		"-nostdin",
		"-i", filename,
		"-map", "0:a:0",
		"-f", "f64le", // Output raw float64 little-endian
		"-ac", strconv.Itoa(metadata.Channels),
		"-ar", strconv.Itoa(metadata.SampleRate),
		"pipe:1",
	}
}

// bytesToFloat64 converts raw float64 bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	if len(data)%8 != 0 {
		// Trim to multiple of 8 bytes
		data = data[:len(data)-(len(data)%8)]
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}

// float64ToBytes is the inverse of bytesToFloat64
func float64ToBytes(samples []float64) []byte {
	data := make([]byte, len(samples)*8)
	for i, v := range samples {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return data
}

// CheckAvailability reports whether ffmpeg and ffprobe can be found
func (d *Decoder) CheckAvailability() error {
	if err := exec.Available(d.config.FFmpegPath); err != nil {
		return err
	}
	return exec.Available(d.config.FFprobePath)
}
