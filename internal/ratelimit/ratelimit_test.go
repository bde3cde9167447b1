package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_MinuteCap(t *testing.T) {
	l := NewLimiter(3, 0, 0, true)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "request %d should pass", i+1)
	}
	assert.False(t, l.Allow())

	stats := l.GetStats()
	assert.Equal(t, 3, stats.RequestsLastMinute)
	assert.Equal(t, 3, stats.LimitPerMinute)
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(1, 1, 1, false)

	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow())
	}
	assert.False(t, l.GetStats().Enabled)
}

func TestLimiter_Reset(t *testing.T) {
	l := NewLimiter(1, 0, 0, true)

	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
	l.Reset()
	assert.True(t, l.Allow())
}
