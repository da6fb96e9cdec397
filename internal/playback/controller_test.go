package playback_test

import (
	"errors"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/volplay/internal/clock"
	"github.com/san-kum/volplay/internal/playback"
)

type stepCall struct {
	axis playback.Axis
	at   time.Duration
}

type harness struct {
	clk     *clock.Manual
	ctrl    *playback.Controller
	ready   bool
	steps   []stepCall
	changes []playback.Axis
	stepErr error
	onStep  func(playback.Axis)
}

func newHarness(extra ...playback.Option) *harness {
	h := &harness{clk: clock.NewManual(), ready: true}
	opts := []playback.Option{
		playback.WithStep(func(a playback.Axis) error {
			h.steps = append(h.steps, stepCall{axis: a, at: h.clk.Now()})
			if h.onStep != nil {
				h.onStep(a)
			}
			return h.stepErr
		}),
		playback.WithDataReady(func() bool { return h.ready }),
		playback.WithAxisChanged(func(a playback.Axis) { h.changes = append(h.changes, a) }),
		playback.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	h.ctrl = playback.New(h.clk, 125*time.Millisecond, append(opts, extra...)...)
	return h
}

func (h *harness) stepTimes() []time.Duration {
	out := make([]time.Duration, len(h.steps))
	for i, s := range h.steps {
		out[i] = s.at
	}
	return out
}

func (h *harness) countAxis(a playback.Axis) int {
	n := 0
	for _, s := range h.steps {
		if s.axis == a {
			n++
		}
	}
	return n
}

var _ = Describe("Controller", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness()
	})

	Describe("construction", func() {
		It("starts stopped", func() {
			Expect(h.ctrl.Snapshot()).To(Equal(playback.Snapshot{}))
		})

		It("falls back to the default interval", func() {
			c := playback.New(clock.NewManual(), 0)
			Expect(c.Interval()).To(Equal(playback.DefaultStepInterval))
		})
	})

	Describe("Play", func() {
		It("steps immediately and then on the cadence", func() {
			h.ctrl.Play(playback.T)
			Expect(h.stepTimes()).To(Equal([]time.Duration{0}))
			Expect(h.changes).To(Equal([]playback.Axis{playback.T}))

			h.clk.Advance(300 * time.Millisecond)
			h.ctrl.Pause()
			h.clk.Advance(200 * time.Millisecond)

			Expect(h.stepTimes()).To(Equal([]time.Duration{0, 125 * time.Millisecond, 250 * time.Millisecond}))
			Expect(h.clk.Pending()).To(BeZero())
			Expect(h.changes).To(Equal([]playback.Axis{playback.T, playback.None}))
		})

		It("redirects to a new axis without stepping the old one again", func() {
			h.ready = false
			h.ctrl.Play(playback.X)
			h.ready = true
			h.ctrl.Play(playback.Y)
			h.clk.Advance(time.Second)

			Expect(h.countAxis(playback.X)).To(BeZero())
			Expect(h.countAxis(playback.Y)).To(BeNumerically(">", 1))
			Expect(h.ctrl.Playing()).To(Equal(playback.Y))
		})

		It("only ever steps the latest axis when redirected before a timer fires", func() {
			h.ctrl.Play(playback.X)
			h.ctrl.Play(playback.Z)
			h.clk.Advance(time.Second)

			Expect(h.countAxis(playback.X)).To(Equal(1))
			Expect(h.countAxis(playback.Z)).To(Equal(len(h.steps) - 1))
			Expect(h.clk.Pending()).To(Equal(1))
		})

		It("treats None as a pause", func() {
			h.ctrl.Play(playback.X)
			h.ctrl.Play(playback.None)
			Expect(h.ctrl.Playing()).To(Equal(playback.None))
			Expect(h.clk.Pending()).To(BeZero())
		})
	})

	Describe("Pause", func() {
		It("stops fully and clears the hold", func() {
			h.ctrl.Play(playback.T)
			h.ctrl.StartHold(playback.T)
			h.ctrl.Pause()

			Expect(h.ctrl.Snapshot()).To(Equal(playback.Snapshot{}))
			h.clk.Advance(time.Second)
			Expect(h.steps).To(HaveLen(1))
		})

		It("is a no-op when nothing is playing", func() {
			h.ctrl.Pause()
			h.ctrl.Pause()
			Expect(h.changes).To(BeEmpty())
			Expect(h.ctrl.Snapshot()).To(Equal(playback.Snapshot{}))
		})

		It("suspends without signalling a stop", func() {
			h.ctrl.Play(playback.Z)
			h.ctrl.Suspend()
			Expect(h.ctrl.Playing()).To(Equal(playback.Z))
			Expect(h.clk.Pending()).To(BeZero())
			Expect(h.changes).To(Equal([]playback.Axis{playback.Z}))
		})
	})

	Describe("holds", func() {
		It("resumes the same axis after a hold on it", func() {
			h.ctrl.Play(playback.T)
			h.clk.Advance(125 * time.Millisecond)
			Expect(h.steps).To(HaveLen(2))

			h.ctrl.StartHold(playback.T)
			snap := h.ctrl.Snapshot()
			Expect(snap.Holding).To(BeTrue())
			Expect(snap.TimerPending).To(BeFalse())

			h.clk.Advance(time.Second)
			Expect(h.steps).To(HaveLen(2))

			h.ctrl.EndHold()
			Expect(h.steps).To(HaveLen(3))
			h.clk.Advance(125 * time.Millisecond)
			Expect(h.steps).To(HaveLen(4))
			Expect(h.steps[3].at - h.steps[2].at).To(Equal(125 * time.Millisecond))
			Expect(h.changes).NotTo(ContainElement(playback.None))
		})

		It("stops playback when a different axis is held", func() {
			h.ctrl.Play(playback.X)
			h.ctrl.StartHold(playback.Y)

			Expect(h.ctrl.Playing()).To(Equal(playback.None))
			Expect(h.changes).To(Equal([]playback.Axis{playback.X, playback.None}))

			h.ctrl.EndHold()
			h.clk.Advance(time.Second)
			Expect(h.steps).To(HaveLen(1))
		})

		It("ignores EndHold without a hold", func() {
			h.ctrl.Play(playback.X)
			h.ctrl.EndHold()
			Expect(h.steps).To(HaveLen(1))
			Expect(h.clk.Pending()).To(Equal(1))
		})

		It("does not start a play issued during a hold until it ends", func() {
			h.ctrl.StartHold(playback.None)
			h.ctrl.Play(playback.X)
			Expect(h.steps).To(BeEmpty())
			Expect(h.clk.Pending()).To(BeZero())

			h.ctrl.EndHold()
			Expect(h.steps).To(HaveLen(1))
		})

		It("clears a pending wait when a hold starts", func() {
			h.ready = false
			h.ctrl.Play(playback.T)
			Expect(h.ctrl.Waiting()).To(BeTrue())

			h.ctrl.StartHold(playback.T)
			Expect(h.ctrl.Waiting()).To(BeFalse())

			h.ready = true
			h.ctrl.DataLoaded()
			Expect(h.steps).To(BeEmpty())

			h.ctrl.EndHold()
			Expect(h.steps).To(HaveLen(1))
		})
	})

	Describe("load gating", func() {
		It("waits for data and resumes on DataLoaded", func() {
			h.ready = false
			h.ctrl.Play(playback.T)

			Expect(h.steps).To(BeEmpty())
			Expect(h.clk.Pending()).To(BeZero())
			Expect(h.ctrl.Waiting()).To(BeTrue())

			h.clk.Advance(time.Second)
			Expect(h.steps).To(BeEmpty())

			h.ready = true
			h.ctrl.DataLoaded()
			Expect(h.steps).To(HaveLen(1))
			Expect(h.steps[0].axis).To(Equal(playback.T))
			Expect(h.clk.Pending()).To(Equal(1))
		})

		It("ignores DataLoaded when not waiting", func() {
			h.ctrl.Play(playback.T)
			h.ctrl.DataLoaded()
			h.ctrl.DataLoaded()
			Expect(h.steps).To(HaveLen(1))
			Expect(h.clk.Pending()).To(Equal(1))
		})

		It("waits again if the data is still missing", func() {
			h.ready = false
			h.ctrl.Play(playback.T)
			h.ctrl.DataLoaded()
			Expect(h.ctrl.Waiting()).To(BeTrue())
			Expect(h.steps).To(BeEmpty())
		})

		It("falls into waiting mid-playback", func() {
			h.ctrl.Play(playback.Y)
			h.ready = false
			h.clk.Advance(125 * time.Millisecond)

			Expect(h.steps).To(HaveLen(1))
			Expect(h.ctrl.Waiting()).To(BeTrue())
			Expect(h.clk.Pending()).To(BeZero())
		})
	})

	Describe("misconfiguration", func() {
		It("does nothing without a step function", func() {
			clk := clock.NewManual()
			var changes []playback.Axis
			c := playback.New(clk, 0, playback.WithAxisChanged(func(a playback.Axis) { changes = append(changes, a) }))
			c.Play(playback.X)
			Expect(clk.Pending()).To(BeZero())
			Expect(c.Playing()).To(Equal(playback.X))
			Expect(changes).To(Equal([]playback.Axis{playback.X}))
		})

		It("treats a missing oracle as always ready", func() {
			clk := clock.NewManual()
			n := 0
			c := playback.New(clk, 10*time.Millisecond, playback.WithStep(func(playback.Axis) error { n++; return nil }))
			c.Play(playback.Z)
			clk.Advance(35 * time.Millisecond)
			Expect(n).To(Equal(4))
		})

		It("steps once per attempt without a scheduler", func() {
			n := 0
			c := playback.New(nil, 0, playback.WithStep(func(playback.Axis) error { n++; return nil }))
			c.Play(playback.T)
			Expect(n).To(Equal(1))
			Expect(c.Snapshot().TimerPending).To(BeFalse())
		})
	})

	Describe("step failures", func() {
		It("stops when the step returns an error", func() {
			h.stepErr = errors.New("boom")
			h.ctrl.Play(playback.T)

			Expect(h.ctrl.Playing()).To(Equal(playback.None))
			Expect(h.clk.Pending()).To(BeZero())
			Expect(h.changes).To(Equal([]playback.Axis{playback.T, playback.None}))
		})

		It("recovers a panicking step and stops", func() {
			h.onStep = func(playback.Axis) { panic("bad index") }
			Expect(func() { h.ctrl.Play(playback.X) }).NotTo(Panic())
			Expect(h.ctrl.Playing()).To(Equal(playback.None))
			Expect(h.clk.Pending()).To(BeZero())
		})

		It("stops from a timer callback without leaving a timer behind", func() {
			h.ctrl.Play(playback.T)
			h.stepErr = errors.New("frame gone")
			h.clk.Advance(125 * time.Millisecond)

			Expect(h.steps).To(HaveLen(2))
			Expect(h.ctrl.Playing()).To(Equal(playback.None))
			Expect(h.clk.Pending()).To(BeZero())
		})
	})

	Describe("re-entrancy", func() {
		It("keeps a single timer when the step re-plays the same axis", func() {
			first := true
			h.onStep = func(a playback.Axis) {
				if first {
					first = false
					h.ctrl.Play(a)
				}
			}
			h.ctrl.Play(playback.T)
			Expect(h.clk.Pending()).To(Equal(1))
		})

		It("does not reschedule when the step pauses", func() {
			h.onStep = func(playback.Axis) { h.ctrl.Pause() }
			h.ctrl.Play(playback.T)
			Expect(h.clk.Pending()).To(BeZero())
			Expect(h.ctrl.Playing()).To(Equal(playback.None))
		})

		It("follows a redirect issued from inside the step", func() {
			h.onStep = func(a playback.Axis) {
				if a == playback.X {
					h.ctrl.Play(playback.Y)
				}
			}
			h.ctrl.Play(playback.X)
			h.clk.Advance(500 * time.Millisecond)

			Expect(h.countAxis(playback.X)).To(Equal(1))
			Expect(h.ctrl.Playing()).To(Equal(playback.Y))
			Expect(h.clk.Pending()).To(Equal(1))
		})
	})

	Describe("Close", func() {
		It("cancels the pending timer and ignores later calls", func() {
			h.ctrl.Play(playback.T)
			h.ctrl.Close()
			Expect(h.clk.Pending()).To(BeZero())

			h.ctrl.Play(playback.X)
			h.clk.Advance(time.Second)
			Expect(h.steps).To(HaveLen(1))
		})
	})

	It("never holds more than one timer across arbitrary call sequences", func() {
		ops := []func(){
			func() { h.ctrl.Play(playback.X) },
			func() { h.ctrl.Play(playback.T) },
			func() { h.ctrl.Pause() },
			func() { h.ctrl.Suspend() },
			func() { h.ctrl.StartHold(playback.T) },
			func() { h.ctrl.StartHold(playback.Y) },
			func() { h.ctrl.EndHold() },
			func() { h.ctrl.DataLoaded() },
			func() { h.ready = !h.ready },
			func() { h.clk.Advance(60 * time.Millisecond) },
			func() { h.clk.Advance(125 * time.Millisecond) },
		}
		seed := uint32(7)
		for i := 0; i < 2000; i++ {
			seed = seed*1664525 + 1013904223
			ops[int(seed>>16)%len(ops)]()

			Expect(h.clk.Pending()).To(BeNumerically("<=", 1))
			snap := h.ctrl.Snapshot()
			if snap.Waiting {
				Expect(snap.Playing).NotTo(Equal(playback.None))
			}
			if snap.Holding {
				Expect(snap.TimerPending).To(BeFalse())
			}
			Expect(snap.TimerPending).To(Equal(h.clk.Pending() == 1))
		}
	})
})
