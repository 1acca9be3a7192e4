package config

import (
	"os"
	"strings"
)

// providerKeyEnv names the conventional API key variable per provider.
var providerKeyEnv = map[string]string{
	"gemini":            "GEMINI_API_KEY",
	"openai":            "OPENAI_API_KEY",
	"openai-compatible": "OPENAI_API_KEY",
	"anthropic":         "ANTHROPIC_API_KEY",
	"mistral":           "MISTRAL_API_KEY",
	"deepseek":          "DEEPSEEK_API_KEY",
	"groq":              "GROQ_API_KEY",
}

// ApplyEnv overlays the SOUNDSCRIBE_* environment variables. The provider's own
// key variable is read later by ResolveAPIKey, once the provider is final.
func (c *Config) ApplyEnv() {
	if v, ok := lookup("SOUNDSCRIBE_OUTPUT_DIR"); ok {
		c.OutputDir = v
	}
	if v, ok := lookup("SOUNDSCRIBE_PROVIDER"); ok {
		c.LLM.Provider = v
	}
	if v, ok := lookup("SOUNDSCRIBE_MODEL"); ok {
		c.LLM.Model = v
	}
	if v, ok := lookup("SOUNDSCRIBE_API_KEY"); ok {
		c.LLM.APIKey = v
	}
}

// ResolveAPIKey fills an empty key from the selected provider's conventional
// variable, e.g. OPENAI_API_KEY for openai.
func (c *Config) ResolveAPIKey() {
	if c.LLM.APIKey != "" {
		return
	}
	if name, ok := providerKeyEnv[strings.ToLower(c.LLM.Provider)]; ok {
		if v, ok := lookup(name); ok {
			c.LLM.APIKey = v
		}
	}
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
