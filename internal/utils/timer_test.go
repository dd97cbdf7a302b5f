package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestTimer(buf *bytes.Buffer, elapsed time.Duration) *Timer {
	log := zerolog.New(buf).Level(zerolog.DebugLevel)
	timer := NewTimer("solve", 100*time.Millisecond, log)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	timer.start = start
	timer.now = func() time.Time { return start.Add(elapsed) }
	return timer
}

func TestTimer_Stop(t *testing.T) {
	var buf bytes.Buffer
	timer := newTestTimer(&buf, 20*time.Millisecond)

	assert.Equal(t, 20*time.Millisecond, timer.Stop())
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), `"operation":"solve"`)
	assert.Contains(t, buf.String(), "Operation completed")
}

func TestTimer_StopWithSlow(t *testing.T) {
	var buf bytes.Buffer
	timer := newTestTimer(&buf, 250*time.Millisecond)

	assert.Equal(t, 250*time.Millisecond, timer.StopWith(map[string]interface{}{"holdings": 6}))
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"holdings":6`)
	assert.Contains(t, buf.String(), "Slow operation detected")
}

func TestNewTimer_DefaultThreshold(t *testing.T) {
	timer := NewTimer("x", 0, zerolog.Nop())
	assert.Equal(t, DefaultSlowThreshold, timer.slow)
}
