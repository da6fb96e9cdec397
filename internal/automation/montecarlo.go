package automation

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/san-kum/volplay/internal/clock"
	"github.com/san-kum/volplay/internal/playback"
)

// MonteCarloConfig defines a randomized stress run of the controller.
type MonteCarloConfig struct {
	NumTrials int
	OpsPerRun int
	Interval  time.Duration
	Seed      int64
}

// MonteCarloResult holds what one trial observed.
type MonteCarloResult struct {
	TrialID    int
	Steps      int
	MaxPending int
	Violations []string
}

func (c *MonteCarloConfig) Validate() error {
	if c.NumTrials <= 0 {
		return fmt.Errorf("trials must be positive, got %d", c.NumTrials)
	}
	if c.OpsPerRun <= 0 {
		return fmt.Errorf("ops per run must be positive, got %d", c.OpsPerRun)
	}
	return nil
}

// RunMonteCarlo drives controllers with random interaction sequences and
// checks the state invariants after every operation. Trials run in
// parallel; trial i draws from seed+i, so results are reproducible.
func RunMonteCarlo(cfg *MonteCarloConfig) ([]MonteCarloResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	results := make([]MonteCarloResult, cfg.NumTrials)

	var wg sync.WaitGroup
	for i := 0; i < cfg.NumTrials; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = runTrial(idx, rand.New(rand.NewSource(seed+int64(idx))), cfg)
		}(i)
	}
	wg.Wait()

	return results, nil
}

func runTrial(trial int, rng *rand.Rand, cfg *MonteCarloConfig) MonteCarloResult {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewManual()
	sched := &countingScheduler{inner: clk}
	ready := true
	res := MonteCarloResult{TrialID: trial}

	ctrl := playback.New(sched, cfg.Interval,
		playback.WithStep(func(playback.Axis) error { res.Steps++; return nil }),
		playback.WithDataReady(func() bool { return ready }),
		playback.WithLogger(quiet),
	)
	interval := ctrl.Interval()

	for i := 0; i < cfg.OpsPerRun; i++ {
		axis := playback.Axes[rng.Intn(len(playback.Axes))]
		var op string
		switch rng.Intn(9) {
		case 0:
			op = OpPlay
			ctrl.Play(axis)
		case 1:
			op = OpPause
			ctrl.Pause()
		case 2:
			op = OpSuspend
			ctrl.Suspend()
		case 3:
			op = OpHold
			ctrl.StartHold(axis)
		case 4:
			op = OpRelease
			ctrl.EndHold()
		case 5:
			op = OpLoaded
			ctrl.DataLoaded()
		case 6:
			op = "toggle-ready"
			ready = !ready
		default:
			op = "advance"
			clk.Advance(time.Duration(rng.Int63n(int64(2 * interval))))
		}
		for _, v := range checkInvariants(ctrl.Snapshot(), sched.pending) {
			res.Violations = append(res.Violations, fmt.Sprintf("op %d (%s): %s", i+1, op, v))
		}
	}
	ctrl.Close()
	res.MaxPending = sched.max
	return res
}

func checkInvariants(s playback.Snapshot, pending int) []string {
	var out []string
	if pending > 1 {
		out = append(out, fmt.Sprintf("%d timers pending", pending))
	}
	if s.Waiting && s.Playing == playback.None {
		out = append(out, "waiting while stopped")
	}
	if s.Holding && s.TimerPending {
		out = append(out, "timer pending during hold")
	}
	if s.TimerPending != (pending == 1) {
		out = append(out, "controller and scheduler disagree on the pending timer")
	}
	return out
}

// MonteCarloStats counts trials with and without invariant violations.
func MonteCarloStats(results []MonteCarloResult) (cleanCount int, violatedCount int) {
	for _, r := range results {
		if len(r.Violations) == 0 {
			cleanCount++
		} else {
			violatedCount++
		}
	}
	return
}
