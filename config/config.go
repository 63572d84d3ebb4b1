// Package config holds runtime settings. Values start from DefaultConfig and
// are overridden by TONIC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/cpu"
)

const envPrefix = "TONIC_"

// Config holds all runtime configuration
type Config struct {
	Workers  int    `json:"workers"`   // 0 means one per physical core
	LogLevel string `json:"log_level"` // debug, info, warn, error
	Progress bool   `json:"progress"`  // progress bar on stderr

	Extensions []string `json:"extensions"`

	Analysis  AnalysisConfig  `json:"analysis"`
	Synth     SynthConfig     `json:"synth"`
	Codec     CodecConfig     `json:"codec"`
	Normalize NormalizeConfig `json:"normalize"`
}

// AnalysisConfig controls the trim and length guard ahead of chroma analysis
type AnalysisConfig struct {
	TopDB       float64       `json:"top_db"`       // silence threshold below peak RMS
	MinDuration time.Duration `json:"min_duration"` // trimmed signals shorter than this are skipped
}

// SynthConfig selects and tunes the pitch shifter
type SynthConfig struct {
	Shifter          string        `json:"shifter"`    // vocoder or rubberband
	Quality          string        `json:"quality"`    // standard or high
	Transients       string        `json:"transients"` // crisp, mixed or smooth
	PreserveFormants bool          `json:"preserve_formants"`
	RubberbandPath   string        `json:"rubberband_path"`
	Timeout          time.Duration `json:"timeout"` // per external process, 0 disables
}

// CodecConfig configures decoding and encoding
type CodecConfig struct {
	FFmpegPath  string        `json:"ffmpeg_path"`
	FFprobePath string        `json:"ffprobe_path"`
	BitDepth    int           `json:"bit_depth"` // PCM bit depth of written WAV files
	Timeout     time.Duration `json:"timeout"`
}

// NormalizeConfig sets the output peak level
type NormalizeConfig struct {
	TargetPeak float64 `json:"target_peak"`
}

// DefaultConfig returns the settings used when no environment overrides are present
func DefaultConfig() Config {
	return Config{
		Workers:    0,
		LogLevel:   "info",
		Progress:   true,
		Extensions: []string{".wav", ".wave", ".flac", ".aif", ".aiff", ".mp3", ".ogg"},
		Analysis: AnalysisConfig{
			TopDB:       40,
			MinDuration: 50 * time.Millisecond,
		},
		Synth: SynthConfig{
			Shifter:        "vocoder",
			Quality:        "high",
			Transients:     "crisp",
			RubberbandPath: "rubberband",
			Timeout:        5 * time.Minute,
		},
		Codec: CodecConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			BitDepth:    16,
			Timeout:     5 * time.Minute,
		},
		Normalize: NormalizeConfig{
			TargetPeak: 0.999,
		},
	}
}

// FromEnv returns DefaultConfig with TONIC_* overrides applied. Unparseable
// values fall back to the default.
func FromEnv() Config {
	def := DefaultConfig()
	timeout := envDuration("TIMEOUT", def.Synth.Timeout)

	return Config{
		Workers:    envInt("WORKERS", def.Workers),
		LogLevel:   envStr("LOG_LEVEL", def.LogLevel),
		Progress:   envBool("PROGRESS", def.Progress),
		Extensions: envList("EXTENSIONS", def.Extensions),
		Analysis: AnalysisConfig{
			TopDB:       envFloat("TOP_DB", def.Analysis.TopDB),
			MinDuration: envDuration("MIN_DURATION", def.Analysis.MinDuration),
		},
		Synth: SynthConfig{
			Shifter:          strings.ToLower(envStr("SHIFTER", def.Synth.Shifter)),
			Quality:          strings.ToLower(envStr("QUALITY", def.Synth.Quality)),
			Transients:       strings.ToLower(envStr("TRANSIENTS", def.Synth.Transients)),
			PreserveFormants: envBool("PRESERVE_FORMANTS", def.Synth.PreserveFormants),
			RubberbandPath:   envStr("RUBBERBAND_PATH", def.Synth.RubberbandPath),
			Timeout:          timeout,
		},
		Codec: CodecConfig{
			FFmpegPath:  envStr("FFMPEG_PATH", def.Codec.FFmpegPath),
			FFprobePath: envStr("FFPROBE_PATH", def.Codec.FFprobePath),
			BitDepth:    envInt("BIT_DEPTH", def.Codec.BitDepth),
			Timeout:     timeout,
		},
		Normalize: NormalizeConfig{
			TargetPeak: envFloat("TARGET_PEAK", def.Normalize.TargetPeak),
		},
	}
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error

	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, errors.New("at least one extension is required"))
	}
	if c.Analysis.TopDB <= 0 {
		errs = append(errs, fmt.Errorf("top_db must be positive, got %g", c.Analysis.TopDB))
	}
	if c.Analysis.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("min_duration must be >= 0, got %v", c.Analysis.MinDuration))
	}
	switch c.Synth.Shifter {
	case "vocoder", "rubberband":
	default:
		errs = append(errs, fmt.Errorf("unknown shifter %q", c.Synth.Shifter))
	}
	switch c.Synth.Quality {
	case "standard", "high":
	default:
		errs = append(errs, fmt.Errorf("unknown quality %q", c.Synth.Quality))
	}
	switch c.Synth.Transients {
	case "crisp", "mixed", "smooth":
	default:
		errs = append(errs, fmt.Errorf("unknown transients mode %q", c.Synth.Transients))
	}
	switch c.Codec.BitDepth {
	case 8, 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("bit_depth must be 8, 16, 24 or 32, got %d", c.Codec.BitDepth))
	}
	if !(c.Normalize.TargetPeak > 0 && c.Normalize.TargetPeak <= 1) {
		errs = append(errs, fmt.Errorf("target_peak must be in (0, 1], got %g", c.Normalize.TargetPeak))
	}

	return errors.Join(errs...)
}

// WorkerCount resolves Workers, substituting the physical core count for 0
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(envPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(envPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("30s") or bare seconds ("30")
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

// envList parses a comma-separated extension list, adding leading dots
func envList(key string, fallback []string) []string {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
