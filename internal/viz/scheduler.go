package viz

import (
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/volplay/internal/clock"
)

// timerMsg carries an expired playback timer into Update, so the callback
// runs on the program's event loop.
type timerMsg struct{ t *teaTimer }

// postMsg carries work posted from loader goroutines.
type postMsg struct{ f func() }

// Scheduler delivers timers and posted work as tea messages. Messages sent
// before Attach are dropped.
type Scheduler struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

var _ clock.Scheduler = (*Scheduler)(nil)

func NewScheduler() *Scheduler { return &Scheduler{} }

// Attach connects the scheduler to a running program.
func (s *Scheduler) Attach(p *tea.Program) {
	s.mu.Lock()
	s.send = p.Send
	s.mu.Unlock()
}

func (s *Scheduler) deliver(msg tea.Msg) {
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

// Post runs f inside Update.
func (s *Scheduler) Post(f func()) { s.deliver(postMsg{f: f}) }

type teaTimer struct {
	timer *time.Timer
	f     func()
	done  atomic.Bool
}

func (s *Scheduler) AfterFunc(d time.Duration, f func()) clock.Timer {
	t := &teaTimer{f: f}
	t.timer = time.AfterFunc(d, func() { s.deliver(timerMsg{t: t}) })
	return t
}

func (t *teaTimer) Stop() bool {
	t.timer.Stop()
	return t.done.CompareAndSwap(false, true)
}

func (t *teaTimer) fire() {
	if t.done.CompareAndSwap(false, true) {
		t.f()
	}
}
