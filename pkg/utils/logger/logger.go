// Package logger provides the process-wide structured logger. Every
// entry point logs through the package functions so trace IDs set by
// the HTTP middleware show up on each line.
package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the logger block of the config file.
type Config struct {
	Level      string `yaml:"level"`      // debug, info, warn, error
	Format     string `yaml:"format"`     // json or console
	OutputPath string `yaml:"outputPath"` // file path, or "stdout"
}

var global = zap.NewNop()

// Init builds the global logger from cfg. Must be called before any
// other function in this package produces output.
func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format(time.RFC3339))
		},
	}

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	sink := zapcore.AddSync(os.Stdout)
	if cfg.OutputPath != "" && cfg.OutputPath != "stdout" {
		f, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		sink = zapcore.AddSync(f)
	}

	global = zap.New(
		zapcore.NewCore(enc, sink, level),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return nil
}

// Sync flushes buffered entries. Called from main on shutdown.
func Sync() error {
	return global.Sync()
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	global.Debug(msg, withTrace(ctx, fields)...)
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	global.Info(msg, withTrace(ctx, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	global.Warn(msg, withTrace(ctx, fields)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	global.Error(msg, withTrace(ctx, fields)...)
}

// withTrace prepends the request trace ID, when the context carries one,
// to the caller's fields.
func withTrace(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	traceID, ok := ctx.Value("trace_id").(string)
	if !ok || traceID == "" {
		return fields
	}
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("trace_id", traceID))
	return append(out, fields...)
}
