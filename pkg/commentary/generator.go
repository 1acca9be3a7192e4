// Package commentary turns a feature series into AI-written captions and a narrative.
package commentary

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nzoschke/soundscribe/pkg/analysis"
)

// Generator builds prompts from features and parses the model's answer.
type Generator struct {
	// Temperature is passed through to the model; zero leaves the backend default.
	Temperature float64

	client   *Client
	interval float64
	logger   *slog.Logger
}

// NewGenerator returns a Generator sampling one analysis point every interval seconds.
func NewGenerator(client *Client, interval float64, logger *slog.Logger) *Generator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, interval: interval, logger: logger}
}

// Generate asks the model for commentary on f. Any failure returns a nil Result.
func (g *Generator) Generate(ctx context.Context, fileName string, f *analysis.Features) (*Result, error) {
	tonality := Tonality(f)
	points := Points(f, g.interval)
	g.logger.Info("requesting commentary",
		"file", fileName,
		"tonality", tonality,
		"points", len(points),
	)

	text, err := g.client.Complete(ctx, CompletionRequest{
		SystemPrompt: SystemPrompt,
		Prompt:       BuildPrompt(fileName, tonality, points),
		Temperature:  g.Temperature,
		JSON:         true,
	})
	if err != nil {
		g.logger.Error("model request failed", "error", err)
		return nil, fmt.Errorf("generate commentary: %w", err)
	}

	result, err := Parse(text)
	if err != nil {
		g.logger.Error("model response unusable", "error", err)
		return nil, fmt.Errorf("generate commentary: %w", err)
	}
	result.Tonality = tonality
	result.Points = points

	g.logger.Info("commentary generated", "items", len(result.Items))
	return result, nil
}
