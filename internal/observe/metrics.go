// Package observe holds the OpenTelemetry instruments recorded while probing
// AMR streams. Without an SDK provider installed the global meter is a no-op,
// so recording is always safe.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/glizzus/amrprobe"

// Metrics holds the instruments for the probe pipeline.
type Metrics struct {
	// ProbeDuration tracks wall time spent probing one stream.
	ProbeDuration metric.Float64Histogram

	// Probes counts finished probes. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	Probes metric.Int64Counter

	// Frames counts frames read. Use with attribute:
	//   attribute.String("kind", ...)
	Frames metric.Int64Counter

	// FrameBytes counts bytes of frame data read.
	FrameBytes metric.Int64Counter
}

var probeBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ProbeDuration, err = m.Float64Histogram("amrprobe.probe.duration",
		metric.WithDescription("Time spent probing one AMR stream."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(probeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Probes, err = m.Int64Counter("amrprobe.probes",
		metric.WithDescription("Finished probes by stream kind and status."),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter("amrprobe.frames",
		metric.WithDescription("Frames read by stream kind."),
	); err != nil {
		return nil, err
	}
	if met.FrameBytes, err = m.Int64Counter("amrprobe.frame.bytes",
		metric.WithDescription("Bytes of frame data read, headers included."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a shared instance built on otel.GetMeterProvider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
