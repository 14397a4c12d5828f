package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_AdvanceFiresInDeadlineOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)

	var order []string
	c.AfterFunc(2*time.Minute, func() { order = append(order, "second") })
	c.AfterFunc(time.Minute, func() { order = append(order, "first") })
	c.AfterFunc(10*time.Minute, func() { order = append(order, "never") })

	c.Advance(5 * time.Minute)

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, start.Add(5*time.Minute), c.Now())
	assert.Equal(t, 1, c.Pending())
}

func TestFakeClock_Stop(t *testing.T) {
	c := Fake(time.Now())
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFakeClock_ZeroDelayWaitsForAdvance(t *testing.T) {
	c := Fake(time.Now())
	fired := false
	c.AfterFunc(-time.Second, func() { fired = true })
	assert.False(t, fired)

	c.Advance(0)
	assert.True(t, fired)
}

func TestFakeClock_CallbackSchedulesDueTimer(t *testing.T) {
	c := Fake(time.Now())
	var calls int
	c.AfterFunc(time.Second, func() {
		calls++
		c.AfterFunc(time.Second, func() { calls++ })
	})

	c.Advance(3 * time.Second)
	assert.Equal(t, 2, calls)
}
