package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
		"noise": slog.LevelInfo,
	}
	for in, want := range cases {
		t.Setenv("LOG_LEVEL", in)
		if got := LogLevel(); got != want {
			t.Errorf("LOG_LEVEL=%q: got %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithJobID(NewLogger(&buf, "json", slog.LevelInfo), "j-1")

	logger.Info("job started", "stage", "ingest-unit")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if entry["job_id"] != "j-1" || entry["stage"] != "ingest-unit" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "text", slog.LevelInfo).Debug("hidden")
	NewLogger(&buf, "text", slog.LevelInfo).Info("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "msg=shown") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger")
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if FromContext(WithLogger(context.Background(), logger)) != logger {
		t.Error("expected logger from context")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Submission("Ingestion")
	m.Submission("Ingestion")
	m.UnitsSkipped(3)
	m.UnitsSkipped(0)
	m.JobFinished("ingest-unit", "SUCCEEDED", 0.2)

	if got := testutil.ToFloat64(m.submissions.WithLabelValues("Ingestion")); got != 2 {
		t.Errorf("submissions: got %v", got)
	}
	if got := testutil.ToFloat64(m.unitsSkipped); got != 3 {
		t.Errorf("skipped: got %v", got)
	}
	if got := testutil.ToFloat64(m.jobsExecuted.WithLabelValues("ingest-unit", "SUCCEEDED")); got != 1 {
		t.Errorf("jobs: got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Submission("x")
	m.UnitsSkipped(1)
	m.StatusQuery("ok")
	m.JobFinished("s", "FAILED", 1)
	m.JoinSettled("released")
}

func TestNewTracerProvider_WithoutEndpoint(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := NewTracerProvider(context.Background(), TracingConfig{Service: "tabledisco-test"},
		sdktrace.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := tp.Tracer(Instrumentation + "/test")
	_, span := StartSpan(context.Background(), tracer, "op", attribute.String("k", "v"))
	EndSpan(span, errors.New("boom"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != "boom" {
		t.Errorf("unexpected status: %+v", spans[0].Status())
	}
	if v, ok := spans[0].Resource().Set().Value("service.name"); !ok || v.AsString() != "tabledisco-test" {
		t.Errorf("expected service.name resource, got %v", v)
	}
}

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{Service: "x"},
		slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
