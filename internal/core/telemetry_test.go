// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/planejarpatrimonio/backend/internal/config"
)

func TestTelemetryDisabled(t *testing.T) {
	tel, err := NewTelemetry(context.Background(), config.OtelConfig{Enabled: false}, config.AppConfig{})
	if err != nil {
		t.Fatalf("NewTelemetry: %v", err)
	}
	if tel.Provider != nil {
		t.Error("provider installed with export disabled")
	}
	if tel.Tracer == nil {
		t.Fatal("nil tracer")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestSampleRate(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, defaultSampleRate},
		{-1, defaultSampleRate},
		{1.5, defaultSampleRate},
		{0.25, 0.25},
		{1, 1},
	}

	for _, tt := range tests {
		if got := sampleRate(tt.in); got != tt.want {
			t.Errorf("sampleRate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	if id := TraceIDFromContext(context.Background()); id != "" {
		t.Errorf("trace id without a span = %q", id)
	}

	ctx, span := StartSpan(context.Background(), "seed.initialize", attribute.Int("seed.users_created", 2))
	if TraceIDFromContext(ctx) == "" {
		t.Error("no trace id inside a span")
	}
	AddSpanEvent(ctx, "retry", attribute.Int("attempt", 1))
	SetSpanError(ctx, errors.New("provider unavailable"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	got := spans[0]
	if got.Name() != "seed.initialize" {
		t.Errorf("name = %q", got.Name())
	}
	if got.Status().Code != codes.Error || got.Status().Description != "provider unavailable" {
		t.Errorf("status = %+v", got.Status())
	}

	var retried bool
	for _, ev := range got.Events() {
		if ev.Name == "retry" {
			retried = true
		}
	}
	if !retried {
		t.Error("retry event not recorded")
	}
}
