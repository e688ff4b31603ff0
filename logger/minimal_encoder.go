package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// minimalEncoder is a calm, single-line console encoder: timestamp, level
// glyph, logger name, message, then any structured fields inline. It trades
// zapcore's default verbosity for something scannable in a terminal during
// development; JSON output (see Initialize) is what ships to aggregation.
type minimalEncoder struct {
	zapcore.Encoder
}

const (
	colorReset  = "\x1b[0m"
	colorDim    = "\x1b[2m"
	colorGreen  = "\x1b[38;5;108m"
	colorYellow = "\x1b[38;5;179m"
	colorRed    = "\x1b[38;5;167m"
)

func newMinimalEncoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return &minimalEncoder{Encoder: zapcore.NewConsoleEncoder(cfg)}
}

func levelColor(lvl zapcore.Level) string {
	switch {
	case lvl >= zapcore.ErrorLevel:
		return colorRed
	case lvl >= zapcore.WarnLevel:
		return colorYellow
	default:
		return colorGreen
	}
}

func (e *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{Encoder: e.Encoder.Clone()}
}

func (e *minimalEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := buffer.NewPool().Get()

	color := levelColor(entry.Level)
	line.AppendString(colorDim)
	line.AppendString(entry.Time.Format("15:04:05"))
	line.AppendString(colorReset)
	line.AppendString(" ")
	line.AppendString(color)
	line.AppendString(strings.ToUpper(entry.Level.String()[:1]))
	line.AppendString(colorReset)
	line.AppendString(" ")
	if entry.LoggerName != "" {
		line.AppendString(colorDim)
		line.AppendString(entry.LoggerName)
		line.AppendString(colorReset)
		line.AppendString(" ")
	}
	line.AppendString(entry.Message)

	for _, f := range fields {
		line.AppendString(" ")
		line.AppendString(colorDim)
		line.AppendString(f.Key)
		line.AppendString("=")
		line.AppendString(colorReset)
		line.AppendString(fmt.Sprint(fieldValue(f)))
	}

	line.AppendString("\n")
	return line, nil
}

func fieldValue(f zapcore.Field) interface{} {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.Int64Type, zapcore.Int32Type:
		return f.Integer
	case zapcore.BoolType:
		return f.Integer == 1
	default:
		if f.Interface != nil {
			return f.Interface
		}
		return f.String
	}
}
