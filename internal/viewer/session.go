// Package viewer wires a volume cursor and frame loader to a playback
// controller: the cursor is the step function, the loader is the
// load-state oracle, and load completions resume waiting playback.
package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/volplay/internal/clock"
	"github.com/san-kum/volplay/internal/playback"
	"github.com/san-kum/volplay/internal/volume"
)

// Poster runs f on the goroutine that owns the controller.
type Poster func(f func())

type Options struct {
	Interval time.Duration
	// Prefetch is the number of timepoints requested ahead of the cursor.
	Prefetch int
	// OnStep is called after every successful step.
	OnStep func(axis playback.Axis, c *volume.Cursor)
	// OnAxisChanged mirrors the controller hook for UI state.
	OnAxisChanged func(axis playback.Axis)
	Logger        *slog.Logger
}

// Session is not safe for concurrent use; like the controller it lives on
// one event loop.
type Session struct {
	ctx    context.Context
	sched  clock.Scheduler
	cursor *volume.Cursor
	loader *volume.Loader
	ctrl   *playback.Controller
	post   Poster
	opts   Options
	log    *slog.Logger

	steps    int
	lastStep time.Time
	retry    clock.Timer
}

// New builds a session. The loader's hooks are replaced so that every
// completed load is posted to the controller's loop, and every failed load
// schedules a retry one interval later.
func New(ctx context.Context, sched clock.Scheduler, post Poster, loader *volume.Loader, opts Options) *Session {
	s := &Session{
		ctx:    ctx,
		sched:  sched,
		cursor: volume.NewCursor(loader.Dims()),
		loader: loader,
		post:   post,
		opts:   opts,
		log:    opts.Logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	loader.SetOnLoaded(func(int) {
		s.post(s.ctrl.DataLoaded)
	})
	loader.SetOnFailed(func(t int, err error) {
		s.post(func() { s.loadFailed(t, err) })
	})
	s.ctrl = playback.New(sched, opts.Interval,
		playback.WithStep(s.step),
		playback.WithDataReady(s.dataReady),
		playback.WithAxisChanged(s.axisChanged),
		playback.WithLogger(s.log),
	)
	return s
}

func (s *Session) Controller() *playback.Controller { return s.ctrl }
func (s *Session) Cursor() *volume.Cursor           { return s.cursor }
func (s *Session) Loader() *volume.Loader           { return s.loader }
func (s *Session) Steps() int                       { return s.steps }

// Start requests the current timepoint so the first frame can be shown.
func (s *Session) Start() {
	t := s.cursor.Index(playback.T)
	s.loader.Request(s.ctx, t)
	s.loader.Prefetch(s.ctx, t, s.opts.Prefetch)
}

// CurrentFrame returns the resident data for the displayed timepoint.
func (s *Session) CurrentFrame() ([]byte, bool) {
	return s.loader.Frame(s.cursor.Index(playback.T))
}

// Toggle pauses when playing and plays axis otherwise.
func (s *Session) Toggle(axis playback.Axis) {
	if s.ctrl.Playing() != playback.None {
		s.ctrl.Pause()
		return
	}
	s.ctrl.Play(axis)
}

// Scrub holds playback on axis and moves the cursor by delta. Call Release
// when the interaction ends.
func (s *Session) Scrub(axis playback.Axis, delta int) error {
	if !axis.Valid() {
		return fmt.Errorf("%w: %v", playback.ErrUnknownAxis, axis)
	}
	s.ctrl.StartHold(axis)
	if err := s.cursor.Set(axis, s.cursor.Index(axis)+delta); err != nil {
		return err
	}
	if axis == playback.T {
		s.loader.Request(s.ctx, s.cursor.Index(playback.T))
	}
	return nil
}

func (s *Session) Release() { s.ctrl.EndHold() }

func (s *Session) Close() {
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.ctrl.Close()
}

// loadFailed re-offers the data to a waiting controller after one interval.
// dataReady then requests the frame again.
func (s *Session) loadFailed(t int, err error) {
	if !s.ctrl.Waiting() {
		return
	}
	s.log.Warn("retrying frame load", "t", t, "err", err, "after", s.ctrl.Interval())
	if s.retry != nil {
		s.retry.Stop()
	}
	s.retry = s.sched.AfterFunc(s.ctrl.Interval(), func() {
		s.retry = nil
		s.ctrl.DataLoaded()
	})
}

func (s *Session) step(axis playback.Axis) error {
	if err := s.cursor.Advance(axis); err != nil {
		return err
	}
	s.steps++
	now := time.Now()
	if !s.lastStep.IsZero() {
		s.log.Debug("step", "axis", axis, "index", s.cursor.Index(axis), "since", now.Sub(s.lastStep))
	}
	s.lastStep = now
	if axis == playback.T {
		s.loader.Prefetch(s.ctx, s.cursor.Index(playback.T), s.opts.Prefetch)
	}
	if s.opts.OnStep != nil {
		s.opts.OnStep(axis, s.cursor)
	}
	return nil
}

// dataReady checks the timepoint the next step will show: the next frame
// when playing time, the current one when moving through space.
func (s *Session) dataReady() bool {
	axis := s.ctrl.Playing()
	t := s.cursor.Index(playback.T)
	if axis == playback.T {
		t = s.cursor.Peek(playback.T)
	}
	if s.loader.Ready(t) {
		return true
	}
	s.loader.Request(s.ctx, t)
	return false
}

func (s *Session) axisChanged(axis playback.Axis) {
	s.log.Info("playback axis changed", "axis", axis)
	if s.opts.OnAxisChanged != nil {
		s.opts.OnAxisChanged(axis)
	}
}
