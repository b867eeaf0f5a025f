package tracer

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"cricsight/internal/infra/config"
)

func expectNoopProvider(t *testing.T, cfg config.TracerConfig) {
	t.Helper()
	shutdown, err := Setup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Setup(%+v): %v", cfg, err)
	}
	defer shutdown(context.Background())

	if _, ok := otel.GetTracerProvider().(noop.TracerProvider); !ok {
		t.Errorf("Setup(%+v): provider = %T, want noop", cfg, otel.GetTracerProvider())
	}
}

func TestSetupNoopVariants(t *testing.T) {
	expectNoopProvider(t, config.TracerConfig{Enabled: false})
	expectNoopProvider(t, config.TracerConfig{Enabled: true, Exporter: ""})
	expectNoopProvider(t, config.TracerConfig{Enabled: true, Exporter: "noop"})
}

func TestSetupStdout(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "stdout"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetupUnsupportedExporter(t *testing.T) {
	if _, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "jaeger"}); err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func TestSpanHelpers(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	ctx, span := StartSpan(context.Background(), "turn")
	if ctx == nil {
		t.Fatal("context is nil")
	}
	SetOK(span)
	RecordError(span, errors.New("boom"))
	span.End()
}

func TestAttrHelpers(t *testing.T) {
	if s := StringAttr("tool.name", "execute_sql"); string(s.Key) != "tool.name" {
		t.Errorf("StringAttr key = %q", s.Key)
	}
	if i := IntAttr("round", 2); i.Value.AsInt64() != 2 {
		t.Errorf("IntAttr value = %d", i.Value.AsInt64())
	}
}
