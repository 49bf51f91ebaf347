// Package observe provides application-wide observability primitives for
// duolog: OpenTelemetry metrics, tracing, and trace-aware structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that recorded metrics
// land in the default Prometheus registry. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all duolog metrics.
const meterName = "github.com/MrWong99/duolog"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// BackendDuration tracks chat backend call latency.
	BackendDuration metric.Float64Histogram

	// SessionDuration tracks wall-clock duration of whole dialogue sessions.
	SessionDuration metric.Float64Histogram

	// SynthesisDuration tracks text-to-speech synthesis latency during
	// transcript playback.
	SynthesisDuration metric.Float64Histogram

	// --- Counters ---

	// BackendRequests counts chat backend calls. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("participant", ...), attribute.String("status", ...)
	BackendRequests metric.Int64Counter

	// AbsorbedFailures counts backend failures recorded as transcript text
	// instead of aborting the session. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("participant", ...)
	AbsorbedFailures metric.Int64Counter

	// TurnPairs counts completed turn-pairs across all sessions.
	TurnPairs metric.Int64Counter

	// TranscriptEntries counts appended transcript entries. Use with attribute:
	//   attribute.String("speaker", ...)
	TranscriptEntries metric.Int64Counter

	// PlaybackClips counts synthesized playback clips. Use with attributes:
	//   attribute.String("voice", ...), attribute.String("status", ...)
	PlaybackClips metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of dialogue sessions currently running.
	ActiveSessions metric.Int64UpDownCounter
}

// callBuckets defines histogram bucket boundaries (in seconds) for single
// backend and synthesis calls.
var callBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// sessionBuckets defines histogram bucket boundaries (in seconds) for whole
// sessions, which run from a few seconds to many minutes depending on the
// turn budget and inter-call delay.
var sessionBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 1800,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.BackendDuration, err = m.Float64Histogram("duolog.backend.duration",
		metric.WithDescription("Latency of chat backend calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(callBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("duolog.session.duration",
		metric.WithDescription("Wall-clock duration of dialogue sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("duolog.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(callBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.BackendRequests, err = m.Int64Counter("duolog.backend.requests",
		metric.WithDescription("Total chat backend calls by backend, participant, and status."),
	); err != nil {
		return nil, err
	}
	if met.AbsorbedFailures, err = m.Int64Counter("duolog.backend.absorbed_failures",
		metric.WithDescription("Backend failures recorded as transcript text by backend and participant."),
	); err != nil {
		return nil, err
	}
	if met.TurnPairs, err = m.Int64Counter("duolog.session.turn_pairs",
		metric.WithDescription("Completed turn-pairs across all sessions."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptEntries, err = m.Int64Counter("duolog.transcript.entries",
		metric.WithDescription("Appended transcript entries by speaker."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackClips, err = m.Int64Counter("duolog.playback.clips",
		metric.WithDescription("Synthesized playback clips by voice and status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("duolog.active_sessions",
		metric.WithDescription("Number of dialogue sessions currently running."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordBackendCall records one chat backend call: its latency and a request
// counter increment with the standard attribute set. status is "ok" or "error".
func (m *Metrics) RecordBackendCall(ctx context.Context, backend, participant string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BackendDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("participant", participant),
		),
	)
	m.BackendRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("participant", participant),
			attribute.String("status", status),
		),
	)
}

// RecordAbsorbedFailure records a backend failure that was converted into
// transcript text.
func (m *Metrics) RecordAbsorbedFailure(ctx context.Context, backend, participant string) {
	m.AbsorbedFailures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("participant", participant),
		),
	)
}

// RecordEntry records one appended transcript entry.
func (m *Metrics) RecordEntry(ctx context.Context, speaker string) {
	m.TranscriptEntries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("speaker", speaker)),
	)
}

// RecordTurnPair records one completed turn-pair.
func (m *Metrics) RecordTurnPair(ctx context.Context) {
	m.TurnPairs.Add(ctx, 1)
}

// RecordSession records the wall-clock duration of a finished session.
func (m *Metrics) RecordSession(ctx context.Context, d time.Duration) {
	m.SessionDuration.Record(ctx, d.Seconds())
}

// RecordSynthesis records one synthesis call during playback. status is "ok"
// or "error".
func (m *Metrics) RecordSynthesis(ctx context.Context, voice string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SynthesisDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("voice", voice)),
	)
	m.PlaybackClips.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("voice", voice),
			attribute.String("status", status),
		),
	)
}
