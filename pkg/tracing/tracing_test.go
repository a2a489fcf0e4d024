package tracing

import (
	"context"
	"os"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracingNoEndpoint(t *testing.T) {
	oldEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	defer func() {
		if oldEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", oldEndpoint)
		}
	}()

	ctx := context.Background()
	shutdown, err := InitTracing(ctx, "test-version")
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}
	defer shutdown(ctx)

	if Tracer == nil {
		t.Fatal("Tracer is nil")
	}

	ctx, span := StartSpan(ctx, "test-span")
	if span == nil {
		t.Fatal("StartSpan returned nil span")
	}
	span.SetAttributes(attribute.String("test", "value"))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "test")
	span.End()
}

func TestStartSpan(t *testing.T) {
	os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	ctx := context.Background()
	shutdown, _ := InitTracing(ctx, "test")
	defer shutdown(ctx)

	ctx, span := StartSpan(ctx, "test-operation",
		trace.WithAttributes(attribute.String("test.key", "test-value")),
	)
	if span == nil {
		t.Fatal("StartSpan returned nil span")
	}
	if trace.SpanFromContext(ctx) == nil {
		t.Fatal("no span in context")
	}
	span.End()
}

func TestRecordErrorSetStatusAddEvent(t *testing.T) {
	os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	ctx := context.Background()
	shutdown, _ := InitTracing(ctx, "test")
	defer shutdown(ctx)

	ctx, span := StartSpan(ctx, "test-op")
	defer span.End()

	RecordError(ctx, &testError{msg: "boom"}, trace.WithTimestamp(time.Now()))
	SetStatus(ctx, codes.Error, "test error")
	AddEvent(ctx, "retry", trace.WithAttributes(attribute.Int("attempt", 1)))
	SetAttributes(ctx, attribute.Bool("ok", true))
}

func TestAttributeHelpers(t *testing.T) {
	attrs := TileAttributes(CacheKindHeatmap, 13, 1, 2, 3)
	if len(attrs) != 5 {
		t.Errorf("TileAttributes returned %d attributes, expected 5", len(attrs))
	}

	attrs = CacheAttributes(CacheTierL1, true, "test-key")
	if len(attrs) != 3 {
		t.Errorf("CacheAttributes returned %d attributes, expected 3", len(attrs))
	}

	if attrs := ErrorAttributes(nil); len(attrs) != 0 {
		t.Errorf("ErrorAttributes(nil) returned %d attributes, expected 0", len(attrs))
	}
	if attrs := ErrorAttributes(&testError{msg: "test error"}); len(attrs) != 1 {
		t.Errorf("ErrorAttributes returned %d attributes, expected 1", len(attrs))
	}
}

func TestEnvironmentDetection(t *testing.T) {
	oldEnv := os.Getenv("ENVIRONMENT")
	os.Unsetenv("ENVIRONMENT")
	if env := getEnvironment(); env != "development" {
		t.Errorf("getEnvironment() = %s, expected 'development'", env)
	}
	os.Setenv("ENVIRONMENT", "production")
	if env := getEnvironment(); env != "production" {
		t.Errorf("getEnvironment() = %s, expected 'production'", env)
	}
	if oldEnv != "" {
		os.Setenv("ENVIRONMENT", oldEnv)
	} else {
		os.Unsetenv("ENVIRONMENT")
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
