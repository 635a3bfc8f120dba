package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestSetupExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{Enabled: true, ServiceName: "ops-desk-test"}, WithWriter(&buf))
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	_, span := Tracer("telemetry_test").Start(context.Background(), "stage.records")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "stage.records") || !strings.Contains(out, "ops-desk-test") {
		t.Fatalf("exported spans = %s", out)
	}
}
