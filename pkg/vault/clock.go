package vault

import (
	"sync"
	"time"
)

// Clock supplies the system time stamped on t_from and t_to.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns UTC wall-clock time truncated to microseconds, the
// resolution of timestamptz.
var SystemClock Clock = ClockFunc(func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
})

// SteppingClock returns start, then advances by step on every call.
type SteppingClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{next: start, step: step}
}

func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}
