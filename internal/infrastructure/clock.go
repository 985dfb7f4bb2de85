package infrastructure

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Output names use these layouts.
const (
	FileTimestampLayout    = "2006-01-02_15-04-05"
	CompactTimestampLayout = "20060102_150405"
	DisplayTimestampLayout = "2006-01-02 15:04"
)

var (
	clockMu sync.RWMutex
	clock   clockwork.Clock = clockwork.NewRealClock()
)

// Clock returns the process clock.
func Clock() clockwork.Clock {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return clock
}

// SetClock replaces the process clock and returns a func restoring the
// previous one. Tests pass a clockwork.FakeClock.
func SetClock(c clockwork.Clock) func() {
	clockMu.Lock()
	prev := clock
	clock = c
	clockMu.Unlock()
	return func() {
		clockMu.Lock()
		clock = prev
		clockMu.Unlock()
	}
}

// Now is Clock().Now().
func Now() time.Time {
	return Clock().Now()
}
