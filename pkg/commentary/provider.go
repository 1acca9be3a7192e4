package commentary

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CompletionRequest is a single-turn prompt sent to a model.
type CompletionRequest struct {
	SystemPrompt string
	Prompt       string
	Temperature  float64
	JSON         bool // ask the backend for a JSON object response when it supports it
}

// CompletionResponse is the text a model returned.
type CompletionResponse struct {
	Content      string
	FinishReason string
}

// Provider is a hosted text model.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ProviderConfig selects and authenticates a backend.
type ProviderConfig struct {
	Provider string // gemini, openai, anthropic, ollama, mistral, deepseek, groq, or openai-compatible
	Model    string
	APIKey   string
	BaseURL  string
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the retrying client gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// NewProvider builds the backend named by cfg.Provider.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch name {
	case "openai-compatible":
		return NewOpenAI(cfg)
	case "":
		return nil, fmt.Errorf("provider: name must not be empty")
	default:
		return NewAnyLLM(cfg)
	}
}
