package automation

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/san-kum/volplay/internal/clock"
	"github.com/san-kum/volplay/internal/playback"
	"github.com/san-kum/volplay/internal/volume"
	"gopkg.in/yaml.v3"
)

const DefaultExtent = 10

// Scenario is a scripted sequence of viewer interactions replayed against a
// controller on a virtual clock.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Interval    time.Duration `yaml:"interval"`
	Until       time.Duration `yaml:"until"`
	// Extent is the number of indices on every axis before wrapping.
	Extent       int     `yaml:"extent"`
	StartBlocked bool    `yaml:"start_blocked"`
	Events       []Event `yaml:"events"`
}

// Event is a single interaction at a virtual time offset.
type Event struct {
	At   time.Duration `yaml:"at"`
	Op   string        `yaml:"op"`
	Axis playback.Axis `yaml:"axis"`
}

const (
	OpPlay    = "play"
	OpPause   = "pause"
	OpSuspend = "suspend"
	OpHold    = "hold"
	OpRelease = "release"
	OpLoaded  = "loaded"
	OpBlock   = "block"
	OpUnblock = "unblock"
)

var axisOps = map[string]bool{OpPlay: true, OpHold: true}

var knownOps = map[string]bool{
	OpPlay: true, OpPause: true, OpSuspend: true, OpHold: true,
	OpRelease: true, OpLoaded: true, OpBlock: true, OpUnblock: true,
}

// StepRecord is one invocation of the step function.
type StepRecord struct {
	At    time.Duration `json:"at"`
	Axis  playback.Axis `json:"axis"`
	Index int           `json:"index"`
}

// AxisChange is one firing of the axis-changed hook.
type AxisChange struct {
	At   time.Duration `json:"at"`
	Axis playback.Axis `json:"axis"`
}

// Trace is everything observed while running a scenario.
type Trace struct {
	Scenario   string            `json:"scenario"`
	Interval   time.Duration     `json:"interval"`
	Until      time.Duration     `json:"until"`
	Steps      []StepRecord      `json:"steps"`
	Changes    []AxisChange      `json:"changes"`
	MaxPending int               `json:"max_pending"`
	Final      playback.Snapshot `json:"final"`
}

// StepsOn returns the steps taken on axis.
func (tr *Trace) StepsOn(axis playback.Axis) []StepRecord {
	var out []StepRecord
	for _, s := range tr.Steps {
		if s.Axis == axis {
			out = append(out, s)
		}
	}
	return out
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if s.Until <= 0 {
		return fmt.Errorf("scenario %q: until must be positive", s.Name)
	}
	if s.Interval < 0 {
		return fmt.Errorf("scenario %q: interval must not be negative", s.Name)
	}
	for i, ev := range s.Events {
		if !knownOps[ev.Op] {
			return fmt.Errorf("scenario %q: event %d: unknown op %q", s.Name, i+1, ev.Op)
		}
		if axisOps[ev.Op] && !ev.Axis.Valid() {
			return fmt.Errorf("scenario %q: event %d: %s needs an axis", s.Name, i+1, ev.Op)
		}
		if ev.At < 0 || ev.At > s.Until {
			return fmt.Errorf("scenario %q: event %d: at %v outside [0,%v]", s.Name, i+1, ev.At, s.Until)
		}
	}
	return nil
}

// countingScheduler tracks how many controller timers are outstanding.
type countingScheduler struct {
	inner   clock.Scheduler
	pending int
	max     int
}

type countedTimer struct {
	inner clock.Timer
	s     *countingScheduler
}

func (c *countingScheduler) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.pending++
	if c.pending > c.max {
		c.max = c.pending
	}
	return &countedTimer{s: c, inner: c.inner.AfterFunc(d, func() {
		c.pending--
		f()
	})}
}

func (t *countedTimer) Stop() bool {
	if t.inner.Stop() {
		t.s.pending--
		return true
	}
	return false
}

// RunScenario replays a scenario against a fresh controller.
func RunScenario(scenario *Scenario, logger *slog.Logger) (*Trace, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	extent := scenario.Extent
	if extent <= 0 {
		extent = DefaultExtent
	}

	clk := clock.NewManual()
	sched := &countingScheduler{inner: clk}
	cursor := volume.NewCursor(volume.Dims{X: extent, Y: extent, Z: extent, T: extent, Channels: 1})
	ready := !scenario.StartBlocked
	tr := &Trace{Scenario: scenario.Name, Until: scenario.Until}

	ctrl := playback.New(sched, scenario.Interval,
		playback.WithStep(func(axis playback.Axis) error {
			if err := cursor.Advance(axis); err != nil {
				return err
			}
			tr.Steps = append(tr.Steps, StepRecord{At: clk.Now(), Axis: axis, Index: cursor.Index(axis)})
			return nil
		}),
		playback.WithDataReady(func() bool { return ready }),
		playback.WithAxisChanged(func(axis playback.Axis) {
			tr.Changes = append(tr.Changes, AxisChange{At: clk.Now(), Axis: axis})
		}),
		playback.WithLogger(logger),
	)
	tr.Interval = ctrl.Interval()

	for _, ev := range scenario.Events {
		ev := ev
		clk.AfterFunc(ev.At, func() {
			logger.Debug("scenario event", "at", ev.At, "op", ev.Op, "axis", ev.Axis)
			switch ev.Op {
			case OpPlay:
				ctrl.Play(ev.Axis)
			case OpPause:
				ctrl.Pause()
			case OpSuspend:
				ctrl.Suspend()
			case OpHold:
				ctrl.StartHold(ev.Axis)
			case OpRelease:
				ctrl.EndHold()
			case OpLoaded:
				ctrl.DataLoaded()
			case OpBlock:
				ready = false
			case OpUnblock:
				ready = true
			}
		})
	}

	clk.Advance(scenario.Until)
	tr.Final = ctrl.Snapshot()
	tr.MaxPending = sched.max
	ctrl.Close()
	return tr, nil
}
