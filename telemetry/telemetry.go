// Package telemetry wires logging, tracing and metrics.
//
// Logging goes through goa.design/clue/log: the logger lives in the context,
// so LogContext must wrap the root context once at startup. Tracing and
// metrics use the global OpenTelemetry providers, which are no-ops unless
// the host process installs real ones.
package telemetry

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"

	"github.com/richinex/datagent/config"
)

const instrumentationName = "github.com/richinex/datagent"

// LogContext returns ctx carrying a clue logger configured from cfg.
// Format "json" or "terminal" forces a format; anything else picks terminal
// output when stderr is a terminal.
func LogContext(ctx context.Context, cfg config.LogConfig) context.Context {
	format := log.FormatJSON
	switch strings.ToLower(cfg.Format) {
	case "json":
	case "terminal", "text":
		format = log.FormatTerminal
	default:
		if log.IsTerminal() {
			format = log.FormatTerminal
		}
	}

	ctx = log.Context(ctx, log.WithFormat(format))
	if cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
	}
	return ctx
}

// Tracer starts spans for runs, routing decisions, agents and tool calls.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer uses the global TracerProvider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(instrumentationName)}
}

// Start opens a span with string attributes given as key, value pairs.
func (t *Tracer) Start(ctx context.Context, name string, kv ...string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(stringAttrs(kv)...))
}

// End closes span, marking it failed when err is non-nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Metrics records counters and histograms on the global MeterProvider.
type Metrics struct {
	routes      metric.Float64Counter
	degraded    metric.Float64Counter
	agentTiming metric.Float64Histogram
}

// NewMetrics creates the instruments. Instrument errors fall back to no-op
// instruments so recording never fails.
func NewMetrics() *Metrics {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}

	var err error
	if m.routes, err = meter.Float64Counter("datagent.route.total",
		metric.WithDescription("Queries routed, by intent")); err != nil {
		m.routes = nil
	}
	if m.degraded, err = meter.Float64Counter("datagent.normalize.degraded.total",
		metric.WithDescription("Tool results the normalizer could not format")); err != nil {
		m.degraded = nil
	}
	if m.agentTiming, err = meter.Float64Histogram("datagent.agent.duration",
		metric.WithDescription("Agent run duration"), metric.WithUnit("s")); err != nil {
		m.agentTiming = nil
	}
	return m
}

// RecordRoute counts one routing decision.
func (m *Metrics) RecordRoute(ctx context.Context, intent string) {
	if m == nil || m.routes == nil {
		return
	}
	m.routes.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))
}

// RecordDegraded counts one degraded normalization.
func (m *Metrics) RecordDegraded(ctx context.Context, tool string) {
	if m == nil || m.degraded == nil {
		return
	}
	m.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordAgent records how long an agent run took and how it ended.
func (m *Metrics) RecordAgent(ctx context.Context, agentName, outcome string, d time.Duration) {
	if m == nil || m.agentTiming == nil {
		return
	}
	m.agentTiming.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("agent", agentName),
		attribute.String("outcome", outcome),
	))
}

func stringAttrs(kv []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	return attrs
}
