/*
Package clock supplies millisecond timestamps for chat events.

Components take a Clock instead of calling time.Now directly so tests can pin time.
*/
package clock

import (
	"sync/atomic"
	"time"
)

// Clock returns the current time as milliseconds since the Unix epoch.
type Clock interface {
	NowMillis() uint64
}

// System is the wall-clock implementation used in production.
// Readings never go backwards, even if the host clock is stepped back.
type System struct {
	last atomic.Uint64
}

// NewSystem returns a ready-to-use System clock.
func NewSystem() *System {
	return &System{}
}

// NowMillis implements Clock.
func (s *System) NowMillis() uint64 {
	now := uint64(time.Now().UnixMilli())
	for {
		last := s.last.Load()
		if now <= last {
			return last
		}
		if s.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// Func adapts a plain function to the Clock interface.
type Func func() uint64

// NowMillis implements Clock.
func (f Func) NowMillis() uint64 {
	return f()
}

// Fixed returns a Clock that always reports ms.
func Fixed(ms uint64) Clock {
	return Func(func() uint64 { return ms })
}
