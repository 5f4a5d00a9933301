package tracing

import (
	"context"
	"testing"
)

func TestInitTracerDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_, span := GetTracer("test").Start(context.Background(), "noop")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Fatalf("expected no-op span when tracing is disabled")
	}
}
