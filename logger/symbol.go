package logger

import (
	"github.com/kiwec/neosu-sub001/sym"
	"go.uber.org/zap"
)

// Symbol-aware logging helpers: log with the subsystem glyph as a
// structured field instead of baked into the message, so logs stay
// queryable by symbol.

func withSymbol(symbol string, keysAndValues []interface{}) []interface{} {
	return append([]interface{}{FieldSymbol, symbol}, keysAndValues...)
}

// AsyncIOInfow logs an info message tagged with the async I/O symbol.
func AsyncIOInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, withSymbol(sym.AsyncIO, keysAndValues)...)
	}
}

// ResourceDebugw logs a debug message tagged with the resource symbol.
func ResourceDebugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Debugw(msg, withSymbol(sym.Resource, keysAndValues)...)
	}
}

// GPUWarnw logs a warning message tagged with the GPU symbol.
func GPUWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, withSymbol(sym.GPU, keysAndValues)...)
	}
}

// WithSymbol returns a logger that always tags entries with the given
// subsystem symbol field.
func WithSymbol(symbol string) *zap.SugaredLogger {
	return Logger.With(FieldSymbol, symbol)
}
