package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	l := slog.New(h)
	return NewSlogLogger(l), &buf
}

func TestSlogLogger_Levels_WriteExpectedOutput(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		key   string
		val   string
	}{
		{"DEBUG", "dbg", "a", "1"},
		{"INFO", "inf", "b", "2"},
		{"WARN", "wrn", "c", "3"},
		{"ERROR", "err", "d", "4"},
	}

	for _, tc := range tests {
		if !strings.Contains(out, "level="+tc.level) {
			t.Fatalf("expected line with level=%s in output:\n%s", tc.level, out)
		}
		if !strings.Contains(out, "msg="+tc.msg) {
			t.Fatalf("expected line with msg=%q in output:\n%s", tc.msg, out)
		}
		if !strings.Contains(out, tc.key+"="+tc.val) {
			t.Fatalf("expected attribute %s=%s in output:\n%s", tc.key, tc.val, out)
		}
	}
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log2 := log.With("req_id", "123", "user", "alice")
	log2.Info(ctx, "hello", "k", "v")

	out := buf.String()
	wantSubs := []string{
		"level=INFO",
		"msg=hello",
		"req_id=123",
		"user=alice",
		"k=v",
	}
	for _, s := range wantSubs {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output, got:\n%s", s, out)
		}
	}
}

func TestSlogLogger_ContextDoesNotPanic(t *testing.T) {
	log, _ := newTestLogger(t)

	ctx := context.TODO()
	log.Info(ctx, "ctx-ok")
	log.Debug(ctx, "ctx-ok")
	log.Warn(ctx, "ctx-ok")
	log.Error(ctx, "ctx-ok")
}

func TestNew_LocalIsTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(EnvLocal, &buf)
	log.Debug(context.Background(), "dbg", "k", "v")

	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "k=v") {
		t.Fatalf("expected text debug line, got:\n%s", out)
	}
}

func TestNew_ProdIsJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(EnvProd, &buf)
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug must be filtered in prod, got:\n%s", buf.String())
	}

	log.Info(ctx, "visible", "user_id", "u-1")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json line: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "visible" || rec["user_id"] != "u-1" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNew_UnknownEnvFallsBackToProd(t *testing.T) {
	var buf bytes.Buffer
	log := New("staging", &buf)
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestErrAttr(t *testing.T) {
	log, buf := newTestLogger(t)
	log.Error(context.Background(), "failed", Err(errors.New("smtp down")))
	if !strings.Contains(buf.String(), `error="smtp down"`) {
		t.Fatalf("expected error attr, got:\n%s", buf.String())
	}
	if Err(nil).Value.String() != "" {
		t.Fatal("nil error should render empty")
	}
}

func TestNop_SatisfiesLogger(t *testing.T) {
	var l Logger = Nop{}
	l.Info(context.Background(), "ignored")
	if l.With("a", 1) == nil {
		t.Fatal("With must return a logger")
	}
}
