package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)

	assert.Equal(t, start, c.Now())
	c.Advance(8 * 24 * time.Hour)
	assert.Equal(t, start.AddDate(0, 0, 8), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestRealMoves(t *testing.T) {
	c := Real()
	first := c.Now()
	assert.False(t, c.Now().Before(first))
}
