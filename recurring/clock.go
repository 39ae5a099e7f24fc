package recurring

import (
	"sync"
	"time"
)

// Clock supplies "today". Injected everywhere a date is derived from the
// wall clock so tests can pin the calendar.
type Clock interface {
	Today() Date
	Now() time.Time
}

// SystemClock reads the wall clock in Location (UTC when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// Today is the calendar day in the clock's location.
func (c SystemClock) Today() Date { return DateOf(c.Now()) }

// FixedClock always reports the same day. Safe for concurrent use.
type FixedClock struct {
	mu  sync.Mutex
	day Date
}

func NewFixedClock(day Date) *FixedClock {
	return &FixedClock{day: day}
}

func (c *FixedClock) Today() Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

func (c *FixedClock) Now() time.Time {
	return c.Today().Time().Add(9 * time.Hour)
}

// Set moves the clock to day.
func (c *FixedClock) Set(day Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.day = day
}

// AddDays moves the clock n days forward.
func (c *FixedClock) AddDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.day = c.day.AddDays(n)
}
