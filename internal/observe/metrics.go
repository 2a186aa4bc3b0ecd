// Package observe provides observability primitives for the voice session
// coordinator: OpenTelemetry metric instruments and the SDK provider setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all coordinator metrics.
const meterName = "github.com/driftvale/ripple"

// Metrics holds all OpenTelemetry metric instruments for the coordinator.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Counters ---

	// EventsDispatched counts audio node events handed to handlers. Use with
	// attribute: attribute.String("event", ...)
	EventsDispatched metric.Int64Counter

	// HandlerPanics counts handler invocations that panicked. Use with
	// attribute: attribute.String("event", ...)
	HandlerPanics metric.Int64Counter

	// UndefinedEvents counts events received with no registered handler
	// method.
	UndefinedEvents metric.Int64Counter

	// PlayCommands counts play ops sent to the audio node. Use with
	// attribute: attribute.String("mode", "start"|"queue")
	PlayCommands metric.Int64Counter

	// --- Gauges ---

	// ActiveLoops tracks the number of guilds with a running queue loop.
	ActiveLoops metric.Int64UpDownCounter

	// ActiveSessions tracks the number of live audio node sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- Node statistics (from the audio node's stats pushes) ---

	// NodePlayers records the node's reported player count.
	NodePlayers metric.Int64Gauge

	// NodePlayingPlayers records the node's reported actively playing
	// player count.
	NodePlayingPlayers metric.Int64Gauge

	// NodeCPULoad records the node's reported process CPU load (0..1).
	NodeCPULoad metric.Float64Gauge
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.EventsDispatched, err = m.Int64Counter("ripple.events.dispatched",
		metric.WithDescription("Total audio node events dispatched to handlers, by event name."),
	); err != nil {
		return nil, err
	}
	if met.HandlerPanics, err = m.Int64Counter("ripple.handler.panics",
		metric.WithDescription("Total handler invocations that panicked, by event name."),
	); err != nil {
		return nil, err
	}
	if met.UndefinedEvents, err = m.Int64Counter("ripple.events.undefined",
		metric.WithDescription("Total events received with no registered handler method."),
	); err != nil {
		return nil, err
	}
	if met.PlayCommands, err = m.Int64Counter("ripple.play.commands",
		metric.WithDescription("Total play ops sent to the audio node, by mode."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveLoops, err = m.Int64UpDownCounter("ripple.active_loops",
		metric.WithDescription("Number of guilds with a running queue loop."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("ripple.active_sessions",
		metric.WithDescription("Number of live audio node sessions."),
	); err != nil {
		return nil, err
	}

	// Node stats gauges.
	if met.NodePlayers, err = m.Int64Gauge("ripple.node.players",
		metric.WithDescription("Player count reported by the audio node."),
	); err != nil {
		return nil, err
	}
	if met.NodePlayingPlayers, err = m.Int64Gauge("ripple.node.playing_players",
		metric.WithDescription("Actively playing player count reported by the audio node."),
	); err != nil {
		return nil, err
	}
	if met.NodeCPULoad, err = m.Float64Gauge("ripple.node.cpu_load",
		metric.WithDescription("Process CPU load reported by the audio node."),
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

// RecordEventDispatched records one dispatched event by name.
func (m *Metrics) RecordEventDispatched(ctx context.Context, event string) {
	m.EventsDispatched.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event", event)),
	)
}

// RecordHandlerPanic records one recovered handler panic by event name.
func (m *Metrics) RecordHandlerPanic(ctx context.Context, event string) {
	m.HandlerPanics.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event", event)),
	)
}

// RecordPlayCommand records one play op by mode ("start" or "queue").
func (m *Metrics) RecordPlayCommand(ctx context.Context, mode string) {
	m.PlayCommands.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", mode)),
	)
}
