package logging

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(t *testing.T) (*DefaultLogger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapLogger(core), logs
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: DebugLevel},
		{in: "INFO", want: InfoLevel},
		{in: "", want: InfoLevel},
		{in: " warn ", want: WarnLevel},
		{in: "warning", want: WarnLevel},
		{in: "error", want: ErrorLevel},
		{in: "fatal", want: FatalLevel},
		{in: "verbose", want: InfoLevel, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelGating(t *testing.T) {
	logger, logs := newObserved(t)

	logger.Debug("hidden")
	logger.Info("shown")
	if logs.Len() != 1 {
		t.Fatalf("got %d entries at info level, want 1", logs.Len())
	}

	logger.SetLevel(DebugLevel)
	logger.Debug("now visible")
	if logs.FilterMessage("now visible").Len() != 1 {
		t.Fatal("debug entry missing after SetLevel(DebugLevel)")
	}

	logger.SetLevel(ErrorLevel)
	logger.Warn("dropped")
	if logs.FilterMessage("dropped").Len() != 0 {
		t.Fatal("warn entry emitted at error level")
	}
}

func TestWithFieldsMergesAndSharesLevel(t *testing.T) {
	logger, logs := newObserved(t)

	child := logger.WithFields(Fields{"component": "pipeline", "file": "a.wav"})
	child.Info("processed", Fields{"root": 9, "file": "b.wav"})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["component"] != "pipeline" {
		t.Errorf("component = %v, want pipeline", ctx["component"])
	}
	if ctx["file"] != "b.wav" {
		t.Errorf("file = %v, want call-site override b.wav", ctx["file"])
	}
	if ctx["root"] != int64(9) {
		t.Errorf("root = %v (%T), want 9", ctx["root"], ctx["root"])
	}

	logger.SetLevel(WarnLevel)
	child.Info("suppressed")
	if logs.FilterMessage("suppressed").Len() != 0 {
		t.Fatal("child logger ignored parent level change")
	}
}

func TestErrorCarriesErrField(t *testing.T) {
	logger, logs := newObserved(t)

	logger.Error(errors.New("boom"), "decode failed")

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	if len(entries) != 1 {
		t.Fatalf("got %d error entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["error"]; got != "boom" {
		t.Fatalf("error field = %v, want boom", got)
	}
}

func TestWithContext(t *testing.T) {
	logger, logs := newObserved(t)

	ctx := ContextWithFields(context.Background(), Fields{"file": "x.wav"})
	ctx = ContextWithFields(ctx, Fields{"worker": 2})
	logger.WithContext(ctx).Info("hello")

	got := logs.All()[0].ContextMap()
	if got["file"] != "x.wav" || got["worker"] != int64(2) {
		t.Fatalf("context fields = %v", got)
	}

	if l := logger.WithContext(context.Background()); l != Logger(logger) {
		t.Fatal("WithContext without fields should return the receiver")
	}
}

func TestSetGlobalLoggerNil(t *testing.T) {
	prev := GetGlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(prev) })

	SetGlobalLogger(nil)
	if _, ok := GetGlobalLogger().(*NoOpLogger); !ok {
		t.Fatalf("global logger = %T, want *NoOpLogger", GetGlobalLogger())
	}
	Info("discarded")
}
