package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func jsonTestLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := New(&Config{
		Level:       "debug",
		Format:      "json",
		Output:      &buf,
		ServiceName: "test",
	})
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	return line
}

func TestEntryMetricFields(t *testing.T) {
	l, buf := jsonTestLogger(t)
	ctx := l.WithContext(context.Background())

	With(nil).
		WithStatus(200).
		WithDuration(42).
		WithSize(512).
		Info(ctx, "Request completed: path=%s", "/health")

	line := decodeLine(t, buf)
	if line[FieldStatus] != float64(200) {
		t.Errorf("status = %v, want 200", line[FieldStatus])
	}
	if line[FieldDurationMs] != float64(42) {
		t.Errorf("duration_ms = %v, want 42", line[FieldDurationMs])
	}
	if line[FieldSize] != float64(512) {
		t.Errorf("size = %v, want 512", line[FieldSize])
	}
	if line["message"] != "Request completed: path=/health" {
		t.Errorf("message = %v", line["message"])
	}
}

func TestEntryUsesContextLoggerFields(t *testing.T) {
	l, buf := jsonTestLogger(t)
	ctx := WithFields(l.WithContext(context.Background()), Fields{
		FieldRequestID: "req-1",
	})

	With(nil).WithCount(3).Info(ctx, "Served recent jobs")

	line := decodeLine(t, buf)
	if line[FieldRequestID] != "req-1" {
		t.Errorf("request_id = %v, want req-1 (context fields must land on the metric line)", line[FieldRequestID])
	}
	if line[FieldCount] != float64(3) {
		t.Errorf("count = %v, want 3", line[FieldCount])
	}
}

func TestEntryFieldMerging(t *testing.T) {
	l, buf := jsonTestLogger(t)
	ctx := l.WithContext(context.Background())

	With(Fields{"a": 1, "b": 1}).With(Fields{"b": 2}).Info(ctx, "merged")

	line := decodeLine(t, buf)
	if line["a"] != float64(1) {
		t.Errorf("a = %v, want 1", line["a"])
	}
	if line["b"] != float64(2) {
		t.Errorf("b = %v, want 2 (later fields win)", line["b"])
	}
}

func TestEntryNilContextFallsBackToOwnLogger(t *testing.T) {
	l, buf := jsonTestLogger(t)

	e := &Entry{logger: l}
	e.WithDuration(7).Info(nil, "background task done")

	line := decodeLine(t, buf)
	if line[FieldDurationMs] != float64(7) {
		t.Errorf("duration_ms = %v, want 7", line[FieldDurationMs])
	}
}
