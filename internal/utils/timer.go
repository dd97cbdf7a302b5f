// Package utils holds small helpers shared across modules.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultSlowThreshold is the duration above which an operation is logged at warn level.
const DefaultSlowThreshold = time.Second

// Timer measures how long an operation takes and logs it on Stop.
type Timer struct {
	start time.Time
	name  string
	slow  time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

// NewTimer starts a timer. A non-positive slow threshold uses DefaultSlowThreshold.
func NewTimer(name string, slow time.Duration, log zerolog.Logger) *Timer {
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	t := &Timer{
		name: name,
		slow: slow,
		log:  log,
		now:  time.Now,
	}
	t.start = t.now()
	return t
}

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	return t.StopWith(nil)
}

// StopWith logs the elapsed time with extra fields and returns it.
func (t *Timer) StopWith(fields map[string]interface{}) time.Duration {
	duration := t.now().Sub(t.start)

	level := zerolog.DebugLevel
	if duration > t.slow {
		level = zerolog.WarnLevel
	}

	event := t.log.WithLevel(level).
		Str("operation", t.name).
		Dur("duration_ms", duration)
	if len(fields) > 0 {
		event = event.Fields(fields)
	}

	if level == zerolog.WarnLevel {
		event.Dur("threshold_ms", t.slow).Msg("Slow operation detected")
	} else {
		event.Msg("Operation completed")
	}

	return duration
}
