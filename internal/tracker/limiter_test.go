package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_LeadingAndTrailing(t *testing.T) {
	l := NewLimiter(300 * time.Millisecond)

	assert.True(t, l.Allow(ms(0)))
	assert.False(t, l.Pending())

	assert.False(t, l.Allow(ms(100)))
	assert.True(t, l.Pending())

	assert.False(t, l.Tick(ms(200)))
	assert.True(t, l.Tick(ms(310)))
	assert.False(t, l.Pending())

	// Nothing pending: ticks are no-ops.
	assert.False(t, l.Tick(ms(900)))
}

func TestLimiter_SustainedPressure(t *testing.T) {
	l := NewLimiter(300 * time.Millisecond)

	allowed := 0
	for i := 0; i <= 3000; i += 16 {
		if l.Allow(ms(i)) {
			allowed++
		}
	}
	// One per 300ms over three seconds, plus the leading event.
	assert.InDelta(t, 11, allowed, 1)
}

func TestLimiter_Flush(t *testing.T) {
	l := NewLimiter(300 * time.Millisecond)
	l.Allow(ms(0))
	l.Allow(ms(50))
	l.Flush()
	assert.False(t, l.Tick(ms(400)))
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(0)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(ms(i)))
	}
}
