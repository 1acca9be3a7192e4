package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Providers lists the accepted llm.provider values.
var Providers = []string{"gemini", "openai", "anthropic", "ollama", "mistral", "deepseek", "groq", "openai-compatible"}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Validate returns every problem found, joined.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate %d must be positive", c.SampleRate))
	}
	if c.Commentary.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("commentary.interval_seconds %v must be positive", c.Commentary.IntervalSeconds))
	}

	if !slices.Contains(Providers, strings.ToLower(c.LLM.Provider)) {
		errs = append(errs, fmt.Errorf("llm.provider %q is invalid; valid values: %s", c.LLM.Provider, strings.Join(Providers, ", ")))
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if strings.EqualFold(c.LLM.Provider, "openai-compatible") && c.LLM.BaseURL == "" {
		errs = append(errs, errors.New("llm.base_url is required for openai-compatible"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %.2f is out of range [0, 2]", c.LLM.Temperature))
	}
	if c.LLM.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_seconds %d must be positive", c.LLM.TimeoutSeconds))
	}
	if c.LLM.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("llm.retry_attempts %d must be at least 1", c.LLM.RetryAttempts))
	}
	if c.LLM.RetryBaseSeconds < 0 || c.LLM.RetryMaxSeconds < c.LLM.RetryBaseSeconds {
		errs = append(errs, fmt.Errorf("llm retry delays invalid: base %v, max %v", c.LLM.RetryBaseSeconds, c.LLM.RetryMaxSeconds))
	}

	if c.Video.Enabled && strings.TrimSpace(c.Video.FFmpegBin) == "" {
		errs = append(errs, errors.New("video.ffmpeg_bin is required when video is enabled"))
	}
	if c.Video.Realtime && strings.TrimSpace(c.Video.FFplayBin) == "" {
		errs = append(errs, errors.New("video.ffplay_bin is required for realtime playback"))
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: %s", c.Log.Level, strings.Join(logLevels, ", ")))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: %s", c.Log.Format, strings.Join(logFormats, ", ")))
	}

	return errors.Join(errs...)
}
