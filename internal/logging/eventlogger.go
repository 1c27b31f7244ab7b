package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EventLogger adapts zerolog.Logger to the dispatcher.Logger interface.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger creates a new EventLogger wrapping a zerolog.Logger.
func NewEventLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Debug logs a debug message with optional key-value pairs.
func (l *EventLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(toFields(keysAndValues)).Msg(msg)
}

// Info logs an info message with optional key-value pairs.
func (l *EventLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(toFields(keysAndValues)).Msg(msg)
}

// Error logs an error message with optional key-value pairs.
func (l *EventLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(toFields(keysAndValues)).Msg(msg)
}

// NewZerolog builds the event bus logger writing plain console lines to out.
// Debug output is sampled: bursts of 5 per 10 seconds, then 1 in 100.
func NewZerolog(out io.Writer, level string) zerolog.Logger {
	var lvl zerolog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = zerolog.DebugLevel
	case "WARN":
		lvl = zerolog.WarnLevel
	case "ERROR":
		lvl = zerolog.ErrorLevel
	case "TRACE":
		lvl = zerolog.TraceLevel
	default:
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}).Level(lvl).With().Timestamp().Str("component", "events").Logger()

	return logger.Sample(zerolog.LevelSampler{
		DebugSampler: &zerolog.BurstSampler{
			Burst:       5,
			Period:      10 * time.Second,
			NextSampler: &zerolog.BasicSampler{N: 100},
		},
	})
}

// toFields converts key-value pairs to a map for zerolog.
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}
