// Package observe records pipeline metrics through the OpenTelemetry metrics API.
//
// Tests and the CLI back the instruments with an SDK MeterProvider and a
// ManualReader so collected values can be read back in-process.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope for every soundscribe metric.
const meterName = "github.com/nzoschke/soundscribe"

// Instrument names.
const (
	StageDurationName  = "soundscribe.stage.duration"
	LLMRequestsName    = "soundscribe.llm.requests"
	FramesRenderedName = "soundscribe.video.frames"
)

// Metrics holds the instruments. All fields are safe for concurrent use.
type Metrics struct {
	// StageDuration tracks wall time per pipeline stage. Attribute: stage.
	StageDuration metric.Float64Histogram

	// LLMRequests counts model attempts. Attributes: provider, status.
	LLMRequests metric.Int64Counter

	// FramesRendered counts encoded video frames.
	FramesRendered metric.Int64Counter
}

// stageBuckets are seconds, spanning a fast extract to a long realtime render.
var stageBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram(StageDurationName,
		metric.WithDescription("Wall time of each pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMRequests, err = m.Int64Counter(LLMRequestsName,
		metric.WithDescription("Model request attempts by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.FramesRendered, err = m.Int64Counter(FramesRenderedName,
		metric.WithDescription("Video frames written to the encoder."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Noop returns instruments that record nothing.
func Noop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// RecordStage records the duration of one stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordLLMRequest counts one model attempt.
func (m *Metrics) RecordLLMRequest(ctx context.Context, provider, status string) {
	m.LLMRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordFrame counts one encoded frame.
func (m *Metrics) RecordFrame(ctx context.Context) {
	m.FramesRendered.Add(ctx, 1)
}
