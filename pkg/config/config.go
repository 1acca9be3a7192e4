// Package config loads soundscribe settings from YAML or TOML files and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is every setting of a run. It is passed explicitly; there is no global instance.
type Config struct {
	OutputDir  string     `yaml:"output_dir" toml:"output_dir"`
	SampleRate int        `yaml:"sample_rate" toml:"sample_rate"`
	Commentary Commentary `yaml:"commentary" toml:"commentary"`
	LLM        LLM        `yaml:"llm" toml:"llm"`
	Video      Video      `yaml:"video" toml:"video"`
	Log        Log        `yaml:"log" toml:"log"`
	Server     Server     `yaml:"server" toml:"server"`
}

// Commentary controls prompt construction.
type Commentary struct {
	IntervalSeconds float64 `yaml:"interval_seconds" toml:"interval_seconds"`
}

// LLM selects the model backend and its retry policy.
type LLM struct {
	Provider         string  `yaml:"provider" toml:"provider"`
	Model            string  `yaml:"model" toml:"model"`
	APIKey           string  `yaml:"api_key" toml:"api_key"`
	BaseURL          string  `yaml:"base_url" toml:"base_url"`
	Temperature      float64 `yaml:"temperature" toml:"temperature"`
	TimeoutSeconds   int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
	RetryAttempts    int     `yaml:"retry_attempts" toml:"retry_attempts"`
	RetryBaseSeconds float64 `yaml:"retry_base_seconds" toml:"retry_base_seconds"`
	RetryMaxSeconds  float64 `yaml:"retry_max_seconds" toml:"retry_max_seconds"`
}

// Timeout is the per-attempt deadline.
func (l LLM) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// RetryBase is the first backoff delay.
func (l LLM) RetryBase() time.Duration {
	return time.Duration(l.RetryBaseSeconds * float64(time.Second))
}

// RetryMax caps the backoff delay.
func (l LLM) RetryMax() time.Duration {
	return time.Duration(l.RetryMaxSeconds * float64(time.Second))
}

// Video controls the rendered visualization.
type Video struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Realtime    bool   `yaml:"realtime" toml:"realtime"`
	MuxAudio    bool   `yaml:"mux_audio" toml:"mux_audio"`
	LivePreview bool   `yaml:"live_preview" toml:"live_preview"`
	FFmpegBin   string `yaml:"ffmpeg_bin" toml:"ffmpeg_bin"`
	FFplayBin   string `yaml:"ffplay_bin" toml:"ffplay_bin"`
}

// Log controls the slog handler.
type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // auto, text or json
}

// Server configures `app serve`.
type Server struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		OutputDir:  ".",
		SampleRate: 22050,
		Commentary: Commentary{IntervalSeconds: 10},
		LLM: LLM{
			Provider:         "gemini",
			Model:            "gemini-2.5-flash",
			TimeoutSeconds:   120,
			RetryAttempts:    3,
			RetryBaseSeconds: 2,
			RetryMaxSeconds:  20,
		},
		Video: Video{
			Enabled:     true,
			MuxAudio:    true,
			LivePreview: true,
			FFmpegBin:   "ffmpeg",
			FFplayBin:   "ffplay",
		},
		Log:    Log{Level: "info", Format: "auto"},
		Server: Server{Addr: ":8080"},
	}
}

// Load reads path over the defaults. The decoder is chosen by extension and
// unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	case ".toml":
		err = decodeTOML(data, &cfg)
	default:
		return cfg, fmt.Errorf("config: %q: unsupported extension, want .yaml, .yml or .toml", path)
	}
	if err != nil {
		return cfg, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

func decodeTOML(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("decode toml: %s", strict.String())
		}
		return fmt.Errorf("decode toml: %w", err)
	}
	return nil
}
