// Package obslog configures the process-wide structured logger from
// DELI_LOG_LEVEL and DELI_LOG_FORMAT, per spec.md §6. Grounded on
// original_source/deli/logging_config.py's env-driven setup; the
// logger implementation itself follows how zap is wired up in the
// broader example pack (isectec-isectech-security's
// sigma_rule_engine.go builds a component-scoped *zap.Logger via
// .With(...) the same way Component() does here).
package obslog

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LevelEnv and FormatEnv match the original program's env vars exactly.
	LevelEnv  = "DELI_LOG_LEVEL"
	FormatEnv = "DELI_LOG_FORMAT" // "json" | "text" (default)
)

// New builds the root *zap.Logger for the process, reading its level
// and encoding from the environment. Output always goes to stderr so
// stdout stays free for report output (spec.md §6).
func New() *zap.Logger {
	level := parseLevel(os.Getenv(LevelEnv))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(os.Getenv(FormatEnv), "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

func parseLevel(name string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "CRITICAL", "FATAL":
		return zapcore.FatalLevel
	case "INFO", "":
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}

// Component returns a child logger tagged with its subsystem name, the
// way sigma_rule_engine.go scopes loggers with zap.String("component", ...).
func Component(base *zap.Logger, name string) *zap.Logger {
	return base.With(zap.String("component", name))
}
