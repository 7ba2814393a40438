package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Timer is a scheduled callback that can be canceled.
// Stop is idempotent and safe to call after the callback has already run.
type Timer interface {
	Stop()
}

// Scheduler arms timers whose callbacks run on the owner's logical thread.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Every(d time.Duration, fn func()) Timer
}

// Loop serializes work onto a single goroutine. Everything posted to it, and
// every timer callback it schedules, runs one at a time in Run.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
	log      zerolog.Logger
}

// New creates a loop with the given queue depth.
func New(logger zerolog.Logger, size int) *Loop {
	if size <= 0 {
		size = 1
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
		log:   logger.With().Str("component", "loop").Logger(),
	}
}

// Post enqueues fn. It blocks while the queue is full and returns false once
// the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Run drains the queue until ctx is done. Work still queued at that point is
// discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	l.log.Debug().Int("capacity", cap(l.queue)).Msg("event loop started")

	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-ctx.Done():
			l.log.Debug().Int("discarded", len(l.queue)).Msg("event loop stopped")
			return nil
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &timer{}
	t.once = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

// Every runs fn on the loop every d until stopped.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	t := &timer{quit: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Post(func() {
					if !t.stopped.Load() {
						fn()
					}
				})
			case <-t.quit:
				return
			case <-l.done:
				return
			}
		}
	}()
	return t
}

// timer is checked on the loop before its callback runs, so a Stop issued
// from the loop wins over a tick that is already queued.
type timer struct {
	stopped atomic.Bool
	once    *time.Timer
	quit    chan struct{}
}

func (t *timer) Stop() {
	if !t.stopped.CompareAndSwap(false, true) {
		return
	}
	if t.once != nil {
		t.once.Stop()
	}
	if t.quit != nil {
		close(t.quit)
	}
}
