// Package observe holds Grace's OpenTelemetry instruments and the
// Prometheus exporter bridge behind /metrics.
//
// Tests should build their own [Metrics] with [NewMetrics] and a manual
// reader; [DefaultMetrics] uses the global meter provider.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/teslashibe/go-grace"

// Metrics holds every instrument the service records.
type Metrics struct {
	// StateTransitions counts voice state changes, by target "state".
	StateTransitions metric.Int64Counter

	// OrbFrames counts animation frames produced by the scheduler.
	OrbFrames metric.Int64Counter

	// TTSDuration tracks synthesis latency.
	TTSDuration metric.Float64Histogram

	// WorkflowRequests counts webhook calls, by "status".
	WorkflowRequests metric.Int64Counter

	// ConversationSessions tracks live conversation sessions.
	ConversationSessions metric.Int64UpDownCounter

	// StreamClients tracks connected websocket clients.
	StreamClients metric.Int64UpDownCounter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.StateTransitions, err = m.Int64Counter("grace.state.transitions",
		metric.WithDescription("Voice state changes by target state."),
	); err != nil {
		return nil, err
	}
	if met.OrbFrames, err = m.Int64Counter("grace.orb.frames",
		metric.WithDescription("Orb animation frames produced."),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("grace.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WorkflowRequests, err = m.Int64Counter("grace.workflow.requests",
		metric.WithDescription("Workflow webhook requests by status."),
	); err != nil {
		return nil, err
	}
	if met.ConversationSessions, err = m.Int64UpDownCounter("grace.conversation.sessions",
		metric.WithDescription("Live conversation sessions."),
	); err != nil {
		return nil, err
	}
	if met.StreamClients, err = m.Int64UpDownCounter("grace.stream.clients",
		metric.WithDescription("Connected websocket clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics built on the global
// meter provider. Call InitProvider first to have them exported.
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

// RecordTransition counts a voice state change.
func (m *Metrics) RecordTransition(ctx context.Context, state string) {
	m.StateTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordWorkflow counts a webhook call.
func (m *Metrics) RecordWorkflow(ctx context.Context, status string) {
	m.WorkflowRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
