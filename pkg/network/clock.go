package network

import (
	"fmt"
	"sync"
	"time"
)

// processStart is the reference instant every Clock measures against.
// Initialized lazily on first use: now_s has no logical owner and every
// component that touches time must agree on the same origin.
var (
	processStartOnce sync.Once
	processStart     time.Time
)

func ensureProcessStart() {
	processStartOnce.Do(func() {
		processStart = time.Now()
	})
}

// Clock is a monotone, process-wide time source counted from process
// start. All durations derived from it are steady-clock (time.Since-based)
// and therefore immune to wall-clock adjustments.
type Clock struct{}

// NewClock returns a Clock. Clock has no state of its own; the shared
// reference instant lives in a package-level var so every Clock (and every
// component that calls NowSeconds directly) agrees on the same origin.
func NewClock() Clock {
	ensureProcessStart()
	return Clock{}
}

// NowSeconds returns seconds elapsed since process start as a monotone,
// real-valued now_s. Safe for concurrent use.
func (Clock) NowSeconds() float64 {
	ensureProcessStart()
	return time.Since(processStart).Seconds()
}

// NowMillis returns milliseconds elapsed since process start, truncated to
// a uint32 the way the wire format's server_time fields expect.
func (Clock) NowMillis() uint32 {
	ensureProcessStart()
	return uint32(time.Since(processStart).Milliseconds())
}

// WallClockLabel formats t's wall-clock time of day as HH:MM:SS.CC for
// log lines. Purely cosmetic; no component derives timing decisions from
// it.
func WallClockLabel(t time.Time) string {
	return fmt.Sprintf("%02d:%02d:%02d.%02d", t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/10000000)
}
