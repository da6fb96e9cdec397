package playback

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/volplay/internal/clock"
)

// DefaultStepInterval is the cadence used when New is given a non-positive interval.
const DefaultStepInterval = 125 * time.Millisecond

// StepFunc advances the viewer by one index along axis. A non-nil error
// stops playback.
type StepFunc func(axis Axis) error

type Option func(*Controller)

// WithStep sets the step function. Without one, playback does nothing.
func WithStep(fn StepFunc) Option {
	return func(c *Controller) { c.step = fn }
}

// WithDataReady sets the load-state oracle. Without one, data is always ready.
func WithDataReady(fn func() bool) Option {
	return func(c *Controller) { c.dataReady = fn }
}

// WithAxisChanged sets a hook fired whenever the playing axis changes,
// including transitions to and from None.
func WithAxisChanged(fn func(Axis)) Option {
	return func(c *Controller) { c.axisChanged = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Playing      Axis
	Waiting      bool
	Holding      bool
	TimerPending bool
}

// Controller owns the playing axis, the step timer and hold/wait flags.
type Controller struct {
	sched       clock.Scheduler
	interval    time.Duration
	step        StepFunc
	dataReady   func() bool
	axisChanged func(Axis)
	log         *slog.Logger

	playing Axis
	waiting bool
	holding bool
	timer   clock.Timer
	// gen invalidates timer callbacks and in-flight step attempts that were
	// superseded while the step function ran.
	gen    uint64
	closed bool
}

// New returns a stopped controller. A nil scheduler disables the automatic
// cadence: each attempt steps once and nothing is armed.
func New(sched clock.Scheduler, interval time.Duration, opts ...Option) *Controller {
	if interval <= 0 {
		interval = DefaultStepInterval
	}
	c := &Controller{
		sched:    sched,
		interval: interval,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Interval() time.Duration { return c.interval }
func (c *Controller) Playing() Axis           { return c.playing }
func (c *Controller) Holding() bool           { return c.holding }
func (c *Controller) Waiting() bool           { return c.waiting }

func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Playing:      c.playing,
		Waiting:      c.waiting,
		Holding:      c.holding,
		TimerPending: c.timer != nil,
	}
}

// Play starts playback on axis, redirecting it if another axis is playing,
// and attempts one step immediately. Play(None) is Pause.
func (c *Controller) Play(axis Axis) {
	if c.closed {
		return
	}
	if axis == None {
		c.Pause()
		return
	}
	if c.playing != None {
		c.pause(true)
	}
	c.playing = axis
	c.notify(axis)
	c.attempt()
}

// Pause stops playback. The hold flag is cleared and the axis-changed hook
// sees None. Pausing while stopped does nothing.
func (c *Controller) Pause() {
	if c.closed {
		return
	}
	c.pause(false)
}

// Suspend cancels the pending step but keeps the playing axis, so a later
// attempt resumes on the same axis without signalling a stop.
func (c *Controller) Suspend() {
	if c.closed {
		return
	}
	c.pause(true)
}

func (c *Controller) pause(willResume bool) {
	c.cancelTimer()
	c.waiting = false
	if !willResume && c.playing != None {
		c.holding = false
		c.playing = None
		c.notify(None)
	}
}

// StartHold suspends playback for an interaction on axis. Holding the
// playing axis keeps it for EndHold; holding any other axis stops playback.
func (c *Controller) StartHold(axis Axis) {
	if c.closed {
		return
	}
	c.holding = true
	c.pause(axis == c.playing)
}

// EndHold releases a hold and resumes the cadence if an axis is still playing.
func (c *Controller) EndHold() {
	if c.closed || !c.holding {
		return
	}
	c.holding = false
	c.attempt()
}

// DataLoaded is called whenever new data becomes resident. It resumes
// playback that was waiting on a load and is ignored otherwise.
func (c *Controller) DataLoaded() {
	if c.closed || !c.waiting {
		return
	}
	c.waiting = false
	c.attempt()
}

// Close cancels any pending step. Every later call is a no-op.
func (c *Controller) Close() {
	c.cancelTimer()
	c.waiting = false
	c.closed = true
}

func (c *Controller) attempt() {
	if c.playing == None || c.holding || c.step == nil {
		return
	}
	c.cancelTimer()
	gen := c.gen
	axis := c.playing

	if c.dataReady != nil && !c.dataReady() {
		if c.gen == gen && c.playing == axis && !c.holding {
			c.waiting = true
		}
		return
	}

	if err := c.invokeStep(axis); err != nil {
		c.log.Error("playback step failed, stopping", "axis", axis, "err", err)
		if c.gen == gen {
			c.pause(false)
		}
		return
	}

	// A callback may have re-entered the controller while the step ran.
	if c.closed || c.gen != gen || c.playing != axis || c.holding || c.waiting {
		return
	}
	c.schedule()
}

func (c *Controller) invokeStep(axis Axis) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()
	return c.step(axis)
}

func (c *Controller) schedule() {
	if c.sched == nil {
		return
	}
	c.gen++
	gen := c.gen
	c.timer = c.sched.AfterFunc(c.interval, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	if c.closed || gen != c.gen || c.timer == nil {
		return
	}
	c.timer = nil
	c.attempt()
}

func (c *Controller) cancelTimer() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) notify(axis Axis) {
	if c.axisChanged != nil {
		c.axisChanged(axis)
	}
}
