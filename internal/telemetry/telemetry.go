// Package telemetry wraps the OpenTelemetry API for turn tracing and metrics.
//
// Only the API is used here. Spans and measurements go to whatever global
// providers the process installs, and are dropped by the default no-op ones.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xiaot623/gogo/a2ui"

// Config configures a Provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "a2ui",
		ServiceVersion: "0.1.0",
		Enabled:        true,
	}
}

// Provider hands out the tracer and the turn instruments.
type Provider struct {
	config *Config
	tracer trace.Tracer
	meter  metric.Meter
	logger *slog.Logger

	turnCounter    metric.Int64Counter
	actionCounter  metric.Int64Counter
	blockedCounter metric.Int64Counter
	errorCounter   metric.Int64Counter
	durationHist   metric.Float64Histogram
}

// New creates a Provider. A disabled provider records nothing but is safe to
// call.
func New(cfg *Config, logger *slog.Logger) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		config: cfg,
		logger: logger.With("component", "telemetry"),
	}
	if !cfg.Enabled {
		p.logger.Info("telemetry disabled")
		return p, nil
	}

	p.tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	p.meter = otel.Meter(instrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}
	return p, nil
}

func (p *Provider) initInstruments() error {
	var err error

	p.turnCounter, err = p.meter.Int64Counter("a2ui.turns.total",
		metric.WithDescription("Turns served"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return err
	}

	p.actionCounter, err = p.meter.Int64Counter("a2ui.actions.total",
		metric.WithDescription("Actions received, by decoded name"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return err
	}

	p.blockedCounter, err = p.meter.Int64Counter("a2ui.actions.blocked",
		metric.WithDescription("Actions refused by policy"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return err
	}

	p.errorCounter, err = p.meter.Int64Counter("a2ui.errors.total",
		metric.WithDescription("Turns that ended in an error view"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	p.durationHist, err = p.meter.Float64Histogram("a2ui.turn.duration",
		metric.WithDescription("Turn duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	return err
}

// Enabled reports whether spans and metrics are recorded.
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.GetTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// Meter returns the configured meter.
func (p *Provider) Meter() metric.Meter {
	if p.meter == nil {
		return otel.GetMeterProvider().Meter(instrumentationName)
	}
	return p.meter
}

// RecordAction counts one received action.
func (p *Provider) RecordAction(ctx context.Context, name string) {
	if p.actionCounter != nil {
		p.actionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("action.name", name)))
	}
}

// RecordBlocked counts one action refused by policy.
func (p *Provider) RecordBlocked(ctx context.Context, name, reason string) {
	if p.blockedCounter != nil {
		p.blockedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action.name", name),
			attribute.String("policy.reason", reason),
		))
	}
}

// Turn tracks one turn from start to finish.
type Turn struct {
	p     *Provider
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

// StartTurn opens a span for a turn of the given kind ("chat", "action",
// "push" or "render").
func (p *Provider) StartTurn(ctx context.Context, kind string, attrs ...attribute.KeyValue) (context.Context, *Turn) {
	attrs = append([]attribute.KeyValue{attribute.String("turn.kind", kind)}, attrs...)
	ctx, span := p.Tracer().Start(ctx, "a2ui."+kind,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return ctx, &Turn{p: p, span: span, start: time.Now(), attrs: attrs}
}

// SetAttributes adds attributes to the span and to the end-of-turn metrics.
func (t *Turn) SetAttributes(attrs ...attribute.KeyValue) {
	t.attrs = append(t.attrs, attrs...)
	t.span.SetAttributes(attrs...)
}

// End closes the turn. A non-nil err marks the span failed and counts an error.
func (t *Turn) End(ctx context.Context, view string, err error) {
	t.SetAttributes(attribute.String("view", view))
	opts := metric.WithAttributes(t.attrs...)

	if err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
		if t.p.errorCounter != nil {
			t.p.errorCounter.Add(ctx, 1, opts)
		}
	} else {
		t.span.SetStatus(codes.Ok, "")
	}
	if t.p.turnCounter != nil {
		t.p.turnCounter.Add(ctx, 1, opts)
	}
	if t.p.durationHist != nil {
		t.p.durationHist.Record(ctx, time.Since(t.start).Seconds(), opts)
	}
	t.span.End()
}
