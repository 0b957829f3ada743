// Package zerolog adapts github.com/rs/zerolog to the hemat.Logger
// interface.
package zerolog

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ambiyansyah-risyal/hemat"
)

// Logger implements hemat.Logger using zerolog.
type Logger struct {
	logger zerolog.Logger
}

var _ hemat.Logger = (*Logger)(nil)

// NewLogger creates a new zerolog logger adapter, for use with
// hemat.WithLogger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Debug(), msg, keysAndValues)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Info(), msg, keysAndValues)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Warn(), msg, keysAndValues)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Error(), msg, keysAndValues)
}

// log attaches alternating key/value pairs to event. A trailing key without
// a value is logged with a nil value.
func (l *Logger) log(event *zerolog.Event, msg string, keysAndValues []interface{}) {
	if event == nil {
		return
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		event = event.Interface(fieldKey(keysAndValues[i]), keysAndValues[i+1])
	}
	if len(keysAndValues)%2 != 0 {
		event = event.Interface(fieldKey(keysAndValues[len(keysAndValues)-1]), nil)
	}
	event.Msg(msg)
}

func fieldKey(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
