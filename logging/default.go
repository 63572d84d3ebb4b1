package logging

import (
	"context"
	"maps"
	"os"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogger is a zap-backed logger.
// Debug/Info -> stdout
// Warn/Error/Fatal -> stderr
// Levels are colored when stdout is a terminal.
type DefaultLogger struct {
	zl     *zap.Logger
	level  zap.AtomicLevel
	fields Fields
}

// NewDefaultLogger creates a new default logger with colored output on terminals
func NewDefaultLogger() *DefaultLogger {
	return newConsoleLogger(isTerminal())
}

// NewDefaultLoggerNoColor creates a new default logger without colored output
func NewDefaultLoggerNoColor() *DefaultLogger {
	return newConsoleLogger(false)
}

// NewZapLogger wraps an existing zap core. The returned logger still applies
// its own level on top of whatever the core enables.
func NewZapLogger(core zapcore.Core) *DefaultLogger {
	return &DefaultLogger{
		zl:     zap.New(core),
		level:  zap.NewAtomicLevelAt(zapcore.InfoLevel),
		fields: make(Fields),
	}
}

func newConsoleLogger(useColors bool) *DefaultLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if useColors {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encCfg.EncodeCaller = nil
	encCfg.CallerKey = ""

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	encoder := zapcore.NewConsoleEncoder(encCfg)

	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return level.Enabled(l) && l < zapcore.WarnLevel
	})
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return level.Enabled(l) && l >= zapcore.WarnLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), low),
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), high),
	)

	return &DefaultLogger{
		zl:     zap.New(core),
		level:  level,
		fields: make(Fields),
	}
}

// isTerminal checks if stdout is a character device
func isTerminal() bool {
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (d *DefaultLogger) zapFields(err error, fields ...Fields) []zap.Field {
	allFields := make(Fields, len(d.fields))
	maps.Copy(allFields, d.fields)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}

	out := make([]zap.Field, 0, len(allFields)+1)
	if err != nil {
		out = append(out, zap.Error(err))
	}
	for _, key := range slices.Sorted(maps.Keys(allFields)) {
		out = append(out, zap.Any(key, allFields[key]))
	}
	return out
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	zl := level.zapLevel()
	if !d.level.Enabled(zl) {
		return
	}

	if ce := d.zl.Check(zl, msg); ce != nil {
		ce.Write(d.zapFields(err, fields...)...)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

// Fatal logs and exits the process with status 1
func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(d.fields)+len(fields))
	maps.Copy(newFields, d.fields)
	maps.Copy(newFields, fields)

	return &DefaultLogger{
		zl:     d.zl,
		level:  d.level,
		fields: newFields,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

// SetLevel changes the level for this logger and every logger derived from it
func (d *DefaultLogger) SetLevel(level Level) {
	d.level.SetLevel(level.zapLevel())
}

// Sync flushes buffered entries
func (d *DefaultLogger) Sync() error {
	return d.zl.Sync()
}

// NoOpLogger discards everything
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
