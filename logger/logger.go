package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger instance, safe to use before Initialize (no-op until then).
var (
	Logger     *zap.SugaredLogger
	JSONOutput bool
)

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger. jsonOutput selects structured JSON
// (for machine consumption / log aggregation) over the minimal console
// encoder (for interactive use during development).
func Initialize(jsonOutput bool) error {
	JSONOutput = jsonOutput

	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = cfg.Build()
	} else {
		zapLogger = zap.New(
			zapcore.NewCore(
				newMinimalEncoder(),
				zapcore.AddSync(os.Stdout),
				zap.InfoLevel,
			),
		)
	}
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// ComponentLogger returns a named logger for a subsystem. Prefer this over
// reaching for the global Logger directly when constructing a component.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
