package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer() (Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewTracer(tp.Tracer("test")), recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestFetchMeta_SpanName(t *testing.T) {
	tests := []struct {
		meta FetchMeta
		want string
	}{
		{FetchMeta{Strategy: "navigation"}, "sw.fetch.navigation"},
		{FetchMeta{Strategy: "asset"}, "sw.fetch.asset"},
		{FetchMeta{}, "sw.fetch"},
	}
	for _, tc := range tests {
		if got := tc.meta.SpanName(); got != tc.want {
			t.Errorf("SpanName() = %q, want %q", got, tc.want)
		}
	}
}

func TestTracer_SpanAttributes(t *testing.T) {
	tr, recorder := newRecordingTracer()
	meta := FetchMeta{
		Version:   "v7",
		Strategy:  "asset",
		Rule:      "assets",
		Method:    "GET",
		Path:      "/app/assets/app.js",
		RequestID: "req-1",
	}

	_, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, Outcome{Source: "cache", Status: 200}, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "sw.fetch.asset" {
		t.Errorf("span name = %q", s.Name())
	}

	attrs := attrMap(s.Attributes())
	if v := attrs["sw.version"]; v.AsString() != "v7" {
		t.Errorf("sw.version = %v", v)
	}
	if v := attrs["url.path"]; v.AsString() != "/app/assets/app.js" {
		t.Errorf("url.path = %v", v)
	}
	if v := attrs["sw.rule"]; v.AsString() != "assets" {
		t.Errorf("sw.rule = %v", v)
	}
	if v := attrs["request.id"]; v.AsString() != "req-1" {
		t.Errorf("request.id = %v", v)
	}
	if v := attrs["sw.source"]; v.AsString() != "cache" {
		t.Errorf("sw.source = %v", v)
	}
	if v := attrs["http.response.status_code"]; v.AsInt64() != 200 {
		t.Errorf("status = %v", v)
	}
	if v := attrs["sw.error"]; v.AsBool() {
		t.Error("sw.error should be false on success")
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status code = %v", s.Status().Code)
	}
}

func TestTracer_ErrorRecorded(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), FetchMeta{Strategy: "other"})
	tr.EndSpan(span, Outcome{}, errors.New("no response"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status().Code)
	}
	if s.Status().Description != "no response" {
		t.Errorf("description = %q", s.Status().Description)
	}
	if v := attrMap(s.Attributes())["sw.error"]; !v.AsBool() {
		t.Error("sw.error should be true")
	}
	if len(s.Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestNopTracer(t *testing.T) {
	tr := NopTracer()
	ctx, span := tr.StartSpan(context.Background(), FetchMeta{Strategy: "media"})
	if ctx == nil || span == nil {
		t.Fatal("nop tracer returned nil")
	}
	tr.EndSpan(span, Outcome{}, nil)
}
