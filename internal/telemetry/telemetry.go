// Package telemetry wires OpenTelemetry tracing for the orchestrator,
// exporting one span per decision cycle, per AI decision service call,
// and per dispatched tool call. It follows the teacher's
// config.TelemetryConfig shape (grpc-by-default OTLP exporter, optional
// http, optional insecure transport, static headers) from
// cmd/gateway.go's traceCollector/initOTelExporter wiring, replacing
// the teacher's database-backed trace collector with a direct OTel SDK
// TracerProvider since this system has no equivalent tracing store.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config mirrors internal/config.TelemetryConfig, kept decoupled from
// the config package so telemetry has no import-cycle exposure to it.
type Config struct {
	Enabled     bool
	Endpoint    string
	Protocol    string // "grpc" (default) or "http"
	Insecure    bool
	ServiceName string
	Headers     map[string]string
}

// Provider wraps a configured TracerProvider. When telemetry is
// disabled, its Tracer still returns a valid no-op tracer so callers
// never need to nil-check.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// New builds a Provider from cfg. If cfg.Enabled is false, it returns a
// Provider backed by the global no-op tracer and Shutdown is a no-op.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: otel.Tracer("socialagent")}, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "socialagent"
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer("socialagent")}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.Protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// Shutdown flushes and stops the exporter. Safe to call on a disabled Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(shutdownCtx)
}

// StartCycle opens a span covering one full decision cycle.
func (p *Provider) StartCycle(ctx context.Context, cycleID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "orchestrator.cycle", trace.WithAttributes(
		attribute.String("cycle.id", cycleID),
	))
}

// StartDecision opens a span covering one AI decision service call.
func (p *Provider) StartDecision(ctx context.Context, cycleID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "aiservice.decide", trace.WithAttributes(
		attribute.String("cycle.id", cycleID),
	))
}

// StartTool opens a span covering one dispatched tool call.
func (p *Provider) StartTool(ctx context.Context, cycleID, toolName string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "tools.execute", trace.WithAttributes(
		attribute.String("cycle.id", cycleID),
		attribute.String("tool.name", toolName),
	))
}
