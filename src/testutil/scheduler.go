// Package testutil holds deterministic fakes for the scheduler and transport seams.
package testutil

import (
	"sort"
	"time"

	"market-viewer/src/interfaces"
)

// -----------------------------------------------------------------------------
// ManualScheduler is a virtual clock. Nothing fires until Advance is called.
// -----------------------------------------------------------------------------

type ManualScheduler struct {
	Epoch  time.Time
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	due     time.Duration
	period  time.Duration
	seq     int
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() { t.stopped = true }

// -----------------------------------------------------------------------------

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{Epoch: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
}

// Now is the virtual wall clock.
func (s *ManualScheduler) Now() time.Time {
	return s.Epoch.Add(s.now)
}

// -----------------------------------------------------------------------------

func (s *ManualScheduler) After(d time.Duration, fn func()) interfaces.ITimer {
	return s.add(d, 0, fn)
}

func (s *ManualScheduler) Every(d time.Duration, fn func()) interfaces.ITimer {
	return s.add(d, d, fn)
}

func (s *ManualScheduler) add(d, period time.Duration, fn func()) *manualTimer {
	s.seq++
	t := &manualTimer{s: s, due: s.now + d, period: period, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// -----------------------------------------------------------------------------

// Advance moves the clock forward and fires every timer that comes due, in
// due-time order.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		next := s.nextDue(target)
		if next == nil {
			break
		}
		s.now = next.due
		if next.period > 0 {
			next.due += next.period
		} else {
			next.stopped = true
		}
		next.fn()
	}
	s.now = target
	s.compact()
}

func (s *ManualScheduler) nextDue(limit time.Duration) *manualTimer {
	live := make([]*manualTimer, 0, len(s.timers))
	for _, t := range s.timers {
		if !t.stopped && t.due <= limit {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].due == live[j].due {
			return live[i].seq < live[j].seq
		}
		return live[i].due < live[j].due
	})
	return live[0]
}

func (s *ManualScheduler) compact() {
	kept := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped {
			kept = append(kept, t)
		}
	}
	s.timers = kept
}

// -----------------------------------------------------------------------------

// Pending counts live timers.
func (s *ManualScheduler) Pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}
