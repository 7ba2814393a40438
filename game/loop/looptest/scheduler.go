// Package looptest provides a manually driven loop.Scheduler for tests.
package looptest

import (
	"time"

	"github.com/wricardo/horserace/game/loop"
)

// Scheduler fires timers only when Advance moves its virtual clock.
// Callbacks run synchronously on the goroutine calling Advance.
type Scheduler struct {
	now    time.Duration
	seq    int
	timers []*Timer
}

func New() *Scheduler {
	return &Scheduler{}
}

type Timer struct {
	at      time.Duration
	period  time.Duration
	seq     int
	fn      func()
	stopped bool
}

func (t *Timer) Stop() {
	t.stopped = true
}

// Stopped reports whether the timer was canceled or, for one-shot timers, has fired.
func (t *Timer) Stopped() bool {
	return t.stopped
}

func (s *Scheduler) AfterFunc(d time.Duration, fn func()) loop.Timer {
	return s.add(d, 0, fn)
}

func (s *Scheduler) Every(d time.Duration, fn func()) loop.Timer {
	return s.add(d, d, fn)
}

func (s *Scheduler) add(d, period time.Duration, fn func()) *Timer {
	s.seq++
	t := &Timer{at: s.now + d, period: period, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Now is the virtual time elapsed since New.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Advance moves the clock forward by d, firing due timers in deadline order.
func (s *Scheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		t := s.next(target)
		if t == nil {
			break
		}
		s.now = t.at
		if t.period > 0 {
			t.at += t.period
		} else {
			t.stopped = true
		}
		t.fn()
	}
	s.now = target
	s.compact()
}

// Pending counts timers that are still armed.
func (s *Scheduler) Pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (s *Scheduler) next(target time.Duration) *Timer {
	var best *Timer
	for _, t := range s.timers {
		if t.stopped || t.at > target {
			continue
		}
		if best == nil || t.at < best.at || (t.at == best.at && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (s *Scheduler) compact() {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	s.timers = live
}
