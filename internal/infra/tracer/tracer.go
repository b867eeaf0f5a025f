// Package tracer wires OpenTelemetry tracing. Disabled config costs a
// noop provider and nothing else.
package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"cricsight/internal/infra/config"
)

const serviceName = "cricsight"

// Setup installs the global TracerProvider and returns its shutdown
// function.
func Setup(ctx context.Context, cfg config.TracerConfig) (func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	exporter, err := buildExporter(cfg)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// buildExporter returns nil when tracing should stay noop.
func buildExporter(cfg config.TracerConfig) (sdktrace.SpanExporter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return exp, nil
	case "noop", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

// StartSpan starts a named span on the service tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(serviceName).Start(ctx, name, opts...)
}

// RecordError records err on the span and marks it failed.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span successful.
func SetOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func IntAttr(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}
