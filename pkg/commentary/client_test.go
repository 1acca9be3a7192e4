package commentary_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nzoschke/soundscribe/pkg/analysis"
	"github.com/nzoschke/soundscribe/pkg/analysis/analysistest"
	"github.com/nzoschke/soundscribe/pkg/commentary"
	"github.com/nzoschke/soundscribe/pkg/commentary/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(delays *[]time.Duration) commentary.Option {
	return commentary.WithSleeper(func(d time.Duration) { *delays = append(*delays, d) })
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	p := mock.New(
		mock.Reply{Err: errors.New("503 service unavailable")},
		mock.Reply{Content: ""},
		mock.Reply{Content: `{"report_narrative": "ok"}`},
	)
	var delays []time.Duration
	var statuses []string
	c := commentary.NewClient(p,
		commentary.WithRetryMaxAttempts(5),
		commentary.WithRetryBackoff(time.Second, 10*time.Second),
		commentary.WithObserver(func(s string) { statuses = append(statuses, s) }),
		noSleep(&delays),
	)

	content, err := c.Complete(context.Background(), commentary.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, `{"report_narrative": "ok"}`, content)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	assert.Equal(t, []string{"error", "error", "ok"}, statuses)
	assert.Len(t, p.Requests(), 3)
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	p := mock.New(mock.Reply{Err: errors.New("boom")})
	var delays []time.Duration
	c := commentary.NewClient(p,
		commentary.WithRetryMaxAttempts(4),
		commentary.WithRetryBackoff(time.Second, 3*time.Second),
		noSleep(&delays),
	)

	_, err := c.Complete(context.Background(), commentary.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed after 4 attempts")
	// 1s, 2s, then capped at 3s
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, delays)
}

func TestClient_PermanentErrorStops(t *testing.T) {
	p := mock.New(mock.Reply{Err: commentary.Permanent(errors.New("401 unauthorized"))})
	var delays []time.Duration
	c := commentary.NewClient(p, noSleep(&delays))

	_, err := c.Complete(context.Background(), commentary.CompletionRequest{Prompt: "hi"})
	assert.ErrorContains(t, err, "401 unauthorized")
	assert.Empty(t, delays)
	assert.Len(t, p.Requests(), 1)
}

func TestClient_ContextCancelled(t *testing.T) {
	p := mock.New(mock.Reply{Content: "{}"})
	c := commentary.NewClient(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Complete(ctx, commentary.CompletionRequest{Prompt: "hi"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_EmptyPrompt(t *testing.T) {
	c := commentary.NewClient(mock.New())
	_, err := c.Complete(context.Background(), commentary.CompletionRequest{})
	assert.ErrorContains(t, err, "prompt required")
}

func toneFeatures(t *testing.T) *analysis.Features {
	t.Helper()
	a := &analysis.Audio{
		Samples:    analysistest.Tone(analysis.DefaultSampleRate, 25, 440),
		SampleRate: analysis.DefaultSampleRate,
	}
	f, err := analysis.Extract(a, analysis.DefaultParams())
	require.NoError(t, err)
	return f
}

func TestGenerator_Generate(t *testing.T) {
	p := mock.New(mock.Reply{Content: "```json\n" + `{
		"commentary_data": [{"time": 10, "commentary": "steady"}, {"time": 0, "commentary": "start"}],
		"report_narrative": "A sustained A."
	}` + "\n```"})
	g := commentary.NewGenerator(commentary.NewClient(p), commentary.DefaultInterval, nil)

	f := toneFeatures(t)
	r, err := g.Generate(context.Background(), "tone.wav", f)
	require.NoError(t, err)

	require.Len(t, r.Items, 2)
	assert.Equal(t, "start", r.Items[0].Commentary)
	assert.Equal(t, "A sustained A.", r.Narrative)
	assert.Equal(t, commentary.Tonality(f), r.Tonality)
	// 25 seconds sampled every 10 seconds
	assert.Len(t, r.Points, 3)

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].JSON)
	assert.Equal(t, commentary.SystemPrompt, reqs[0].SystemPrompt)
	assert.Contains(t, reqs[0].Prompt, "'tone.wav'")
	assert.Contains(t, reqs[0].Prompt, "Key: A")
}

func TestGenerator_FailureSentinel(t *testing.T) {
	f := toneFeatures(t)

	for name, reply := range map[string]mock.Reply{
		"not json":   {Content: "no json here"},
		"api error":  {Err: commentary.Permanent(errors.New("quota exceeded"))},
		"empty text": {Content: "   "},
	} {
		t.Run(name, func(t *testing.T) {
			c := commentary.NewClient(mock.New(reply), commentary.WithRetryMaxAttempts(1))
			r, err := commentary.NewGenerator(c, 0, nil).Generate(context.Background(), "tone.wav", f)
			assert.Nil(t, r)
			assert.Error(t, err)
		})
	}
}
