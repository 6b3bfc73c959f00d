package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}

	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log level")
	}

	cfg = DefaultConfig()
	cfg.Tracing.SamplingRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sampling rate > 1")
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LoggingConfig{Level: "debug", Format: "json"})

	logger.NewComponentLogger("engine").WithRunID("r-1").Info("run started")

	out := buf.String()
	for _, want := range []string{`"component":"engine"`, `"run_id":"r-1"`, `"message":"run started"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q does not contain %s", out, want)
		}
	}
}

func TestLoggerFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext returned nil without a logger")
	}

	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LoggingConfig{Level: "info", Format: "json"})
	ctx := logger.WithContext(context.Background())
	FromContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("logger from context did not write, got %q", buf.String())
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("GET", 200, time.Millisecond)
	m.RecordTokenRefresh(true)
	m.RecordRunTransition("python+run", "RUNNING")
	m.RecordRuntimeCall("python", "run", errors.New("boom"))
	if m.Registry() != nil {
		t.Error("nil metrics returned a registry")
	}
}

func TestMetricsHandler(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	m.RecordRequest("GET", 404, 10*time.Millisecond)
	m.RecordRunTransition("python+run", "COMPLETED")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`dhsdk_client_requests_total{method="GET",status="404"} 1`,
		`dhsdk_run_transitions_total{kind="python+run",state="COMPLETED"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestStartOperationWithoutTelemetry(t *testing.T) {
	var tel *Telemetry
	op := tel.StartOperation(context.Background(), "noop")
	if op.Ctx == nil || op.Logger == nil {
		t.Fatal("StartOperation on nil telemetry returned an incomplete context")
	}
	op.End(errors.New("ignored"))
}

func TestDisabledTracer(t *testing.T) {
	tr, err := NewTracer(TracingConfig{Enabled: false}, "dhsdk", "test")
	if err != nil {
		t.Fatalf("NewTracer failed: %v", err)
	}
	ctx, span := tr.StartRunSpan(context.Background(), "build", "r-1")
	defer span.End()
	if TraceID(ctx) != "" {
		t.Error("disabled tracer produced a trace id")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
