package testfixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	assert.True(t, clock.Now().Equal(ReferenceTime()))
	assert.Equal(t, time.Monday, ReferenceTime().Weekday())
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2025, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	assert.Equal(t, start.Add(90*time.Minute), clock.Advance(90*time.Minute))

	clock.Set(start)
	assert.Equal(t, Date(2025, time.March, 17).Add(9*time.Hour+26*time.Minute), clock.AdvanceDays(3))
}

func TestClockNowFunc(t *testing.T) {
	clock := NewClock(Date(2025, time.January, 1))
	nowFn := clock.NowFunc()

	assert.Equal(t, clock.Now(), nowFn())
	clock.Advance(time.Minute)
	assert.Equal(t, clock.Now(), nowFn())

	var missing *Clock
	assert.NotNil(t, missing.NowFunc())
}
