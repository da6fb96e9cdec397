package clock

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer; false means it already fired or was stopped.
	Stop() bool
}

// Scheduler arranges for f to run once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Manual is a virtual clock. Time only moves when Advance is called, and
// callbacks run synchronously on the caller's goroutine.
type Manual struct {
	now    time.Duration
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	m        *Manual
	deadline time.Duration
	seq      uint64
	f        func()
	done     bool
}

func NewManual() *Manual {
	return &Manual{}
}

// Now returns the virtual time elapsed since the clock was created.
func (m *Manual) Now() time.Duration { return m.now }

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{m: m, deadline: m.now + d, seq: m.seq, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	t.m.remove(t)
	return true
}

func (m *Manual) remove(t *manualTimer) {
	for i, other := range m.timers {
		if other == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (m *Manual) Pending() int { return len(m.timers) }

// Advance moves the clock forward by d, firing every timer whose deadline
// falls inside the window in deadline order. Timers armed by callbacks are
// fired too if they come due before the window closes.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		t := m.next()
		if t == nil || t.deadline > target {
			break
		}
		m.now = t.deadline
		t.done = true
		m.remove(t)
		t.f()
	}
	m.now = target
}

func (m *Manual) next() *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].deadline != m.timers[j].deadline {
			return m.timers[i].deadline < m.timers[j].deadline
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	return m.timers[0]
}

// Loop is a real-time event loop. Work posted to it, including expired timer
// callbacks, runs on the goroutine that called Run.
type Loop struct {
	work     chan func()
	quit     chan struct{}
	quitOnce sync.Once
}

func NewLoop(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	return &Loop{work: make(chan func(), buffer), quit: make(chan struct{})}
}

// Post enqueues f. It blocks while the queue is full and drops f once Run
// has returned.
func (l *Loop) Post(f func()) {
	select {
	case l.work <- f:
	case <-l.quit:
	}
}

// Run executes posted work until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.quitOnce.Do(func() { close(l.quit) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-l.work:
			f()
		}
	}
}

type loopTimer struct {
	timer *time.Timer
	done  atomic.Bool
}

func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.done.CompareAndSwap(false, true) {
				f()
			}
		})
	})
	return t
}

func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.done.CompareAndSwap(false, true)
}
