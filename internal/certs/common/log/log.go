package log

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global Logger = newZapLogger(false, zapcore.InfoLevel)

// Logger is the structured logging surface used across rr-certoverride.
// Fields are passed as a map so call sites stay free of zap types.
type Logger interface {
	Info(fields map[string]any, msg string)
	Error(fields map[string]any, msg string)
	Debug(fields map[string]any, msg string)
	Warn(fields map[string]any, msg string)
	Panic(fields map[string]any, msg string)
	Fatal(fields map[string]any, msg string)
}

// SetLogger replaces the global logger.
func SetLogger(l Logger) {
	global = l
}

// GetLogger returns the global logger.
func GetLogger() Logger {
	return global
}

// Configure rebuilds the global logger for the given environment and level.
// Any env other than "prod" selects the human readable development encoder.
func Configure(env, level string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	global = newZapLogger(env != "prod", lvl)
	return nil
}

// NewFromCore wraps an existing zap core. Tests use it with zaptest/observer.
func NewFromCore(core zapcore.Core) Logger {
	return &zapLogger{base: zap.New(core)}
}

// Component returns a logger that tags every entry with component=name.
// Loggers not backed by zap are returned unchanged.
func Component(l Logger, name string) Logger {
	if z, ok := l.(*zapLogger); ok {
		return &zapLogger{base: z.base.With(zap.String("component", name))}
	}
	return l
}

func Info(fields map[string]any, msg string)  { global.Info(fields, msg) }
func Error(fields map[string]any, msg string) { global.Error(fields, msg) }
func Debug(fields map[string]any, msg string) { global.Debug(fields, msg) }
func Warn(fields map[string]any, msg string)  { global.Warn(fields, msg) }
func Panic(fields map[string]any, msg string) { global.Panic(fields, msg) }
func Fatal(fields map[string]any, msg string) { global.Fatal(fields, msg) }

type zapLogger struct {
	base *zap.Logger
}

func newZapLogger(dev bool, level zapcore.Level) Logger {
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build()
	if err != nil {
		return &noopLogger{}
	}
	return &zapLogger{base: base}
}

func (l *zapLogger) Info(fields map[string]any, msg string)  { l.base.Info(msg, zapFields(fields)...) }
func (l *zapLogger) Error(fields map[string]any, msg string) { l.base.Error(msg, zapFields(fields)...) }
func (l *zapLogger) Debug(fields map[string]any, msg string) { l.base.Debug(msg, zapFields(fields)...) }
func (l *zapLogger) Warn(fields map[string]any, msg string)  { l.base.Warn(msg, zapFields(fields)...) }
func (l *zapLogger) Panic(fields map[string]any, msg string) { l.base.Panic(msg, zapFields(fields)...) }
func (l *zapLogger) Fatal(fields map[string]any, msg string) { l.base.Fatal(msg, zapFields(fields)...) }

// zapFields converts the field map in key order so output is stable.
func zapFields(m map[string]any) []zap.Field {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := m[k].(error); ok {
			fields = append(fields, zap.NamedError(k, err))
			continue
		}
		fields = append(fields, zap.Any(k, m[k]))
	}
	return fields
}

type noopLogger struct{}

func (n *noopLogger) Info(map[string]any, string)  {}
func (n *noopLogger) Error(map[string]any, string) {}
func (n *noopLogger) Debug(map[string]any, string) {}
func (n *noopLogger) Warn(map[string]any, string)  {}
func (n *noopLogger) Panic(map[string]any, string) {}
func (n *noopLogger) Fatal(map[string]any, string) {}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger {
	return &noopLogger{}
}
