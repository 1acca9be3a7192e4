package observe

import (
	"context"
	"slices"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Provider is an in-process MeterProvider whose values can be read back.
type Provider struct {
	*sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// NewProvider returns a MeterProvider backed by a ManualReader.
func NewProvider(serviceVersion string) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName("soundscribe"),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	return &Provider{MeterProvider: mp, reader: reader}, nil
}

// Collect reads the current values.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// StageTiming is the total time spent in one stage.
type StageTiming struct {
	Stage    string
	Count    uint64
	Duration time.Duration
}

// StageTimings sums the stage histogram per stage, sorted by stage name.
func StageTimings(rm metricdata.ResourceMetrics) []StageTiming {
	var out []StageTiming
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != StageDurationName {
				continue
			}
			h, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				continue
			}
			for _, dp := range h.DataPoints {
				stage, _ := dp.Attributes.Value("stage")
				out = append(out, StageTiming{
					Stage:    stage.AsString(),
					Count:    dp.Count,
					Duration: time.Duration(dp.Sum * float64(time.Second)),
				})
			}
		}
	}
	slices.SortFunc(out, func(a, b StageTiming) int {
		switch {
		case a.Stage < b.Stage:
			return -1
		case a.Stage > b.Stage:
			return 1
		}
		return 0
	})
	return out
}

// CounterTotal sums every data point of the named Int64 counter.
func CounterTotal(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
