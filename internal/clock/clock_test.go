package clock

import (
	"context"
	"testing"
	"time"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	m := NewManual()
	var order []string

	m.AfterFunc(30*time.Millisecond, func() { order = append(order, "c") })
	m.AfterFunc(10*time.Millisecond, func() { order = append(order, "a") })
	m.AfterFunc(20*time.Millisecond, func() { order = append(order, "b") })

	m.Advance(25 * time.Millisecond)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected [a b], got %v", order)
	}
	if m.Now() != 25*time.Millisecond {
		t.Errorf("expected now 25ms, got %v", m.Now())
	}
	if m.Pending() != 1 {
		t.Errorf("expected 1 pending timer, got %d", m.Pending())
	}

	m.Advance(5 * time.Millisecond)
	if len(order) != 3 || order[2] != "c" {
		t.Errorf("expected c to fire at 30ms, got %v", order)
	}
}

func TestManualStop(t *testing.T) {
	m := NewManual()
	fired := false
	tm := m.AfterFunc(time.Millisecond, func() { fired = true })

	if !tm.Stop() {
		t.Error("first Stop should report true")
	}
	if tm.Stop() {
		t.Error("second Stop should report false")
	}
	m.Advance(time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if m.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", m.Pending())
	}
}

func TestManualRearmInsideWindow(t *testing.T) {
	m := NewManual()
	var at []time.Duration

	var tick func()
	tick = func() {
		at = append(at, m.Now())
		m.AfterFunc(100*time.Millisecond, tick)
	}
	m.AfterFunc(100*time.Millisecond, tick)

	m.Advance(350 * time.Millisecond)
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	if len(at) != len(want) {
		t.Fatalf("expected %d ticks, got %v", len(want), at)
	}
	for i := range want {
		if at[i] != want[i] {
			t.Errorf("tick %d at %v, want %v", i, at[i], want[i])
		}
	}
}

func TestManualFiredTimerStop(t *testing.T) {
	m := NewManual()
	tm := m.AfterFunc(0, func() {})
	m.Advance(0)
	if tm.Stop() {
		t.Error("Stop after firing should report false")
	}
}

func TestLoopRunsTimersOnLoop(t *testing.T) {
	l := NewLoop(8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go l.Run(ctx)

	l.Post(func() {
		l.AfterFunc(5*time.Millisecond, func() { close(done) })
	})

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timer never fired")
	}
}

func TestLoopStoppedTimerDoesNotRun(t *testing.T) {
	l := NewLoop(8)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go l.Run(ctx)

	fired := make(chan struct{}, 1)
	tm := l.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })
	if !tm.Stop() {
		t.Fatal("expected Stop to report true")
	}

	select {
	case <-fired:
		t.Error("stopped timer ran")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestLoopPostAfterRunReturns(t *testing.T) {
	l := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	l.Post(func() {})
	posted := make(chan struct{})
	go func() {
		l.Post(func() {})
		close(posted)
	}()
	select {
	case <-posted:
	case <-time.After(time.Second):
		t.Error("Post blocked after Run returned")
	}
}
