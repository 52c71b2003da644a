package pipeline

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestService_RecordsSpans(t *testing.T) {
	f := newFixture(t)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	svc := New(Config{
		Backend:        f.backend,
		Topology:       f.store,
		Catalog:        f.catalog,
		Objects:        f.objects,
		TracerProvider: tp,
	})
	ctx := context.Background()

	if _, err := svc.IngestBucket(ctx, "raw"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.IngestBucket(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing bucket")
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, s := range spans {
		if s.Name() != "pipeline.IngestBucket" {
			t.Errorf("unexpected span %q", s.Name())
		}
	}

	ok, failed := spans[0], spans[1]
	if ok.Status().Code != codes.Ok {
		t.Errorf("expected ok status, got %v", ok.Status())
	}
	attrs := attribute.NewSet(ok.Attributes()...)
	if v, _ := attrs.Value("bucket"); v.AsString() != "raw" {
		t.Errorf("expected bucket attribute raw, got %q", v.AsString())
	}
	if v, _ := attrs.Value("units.pending"); v.AsInt64() != 2 {
		t.Errorf("expected 2 pending units, got %d", v.AsInt64())
	}
	if failed.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", failed.Status())
	}
	if len(failed.Events()) == 0 {
		t.Error("expected recorded error event")
	}
}
