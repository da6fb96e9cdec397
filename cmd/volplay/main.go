package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/volplay/internal/automation"
	"github.com/san-kum/volplay/internal/clock"
	"github.com/san-kum/volplay/internal/config"
	"github.com/san-kum/volplay/internal/logx"
	"github.com/san-kum/volplay/internal/playback"
	"github.com/san-kum/volplay/internal/storage"
	"github.com/san-kum/volplay/internal/viewer"
	"github.com/san-kum/volplay/internal/viz"
	"github.com/san-kum/volplay/internal/volume"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	preset     string
	interval   time.Duration
	axisName   string
	duration   time.Duration
	saveTrace  bool
	jsonOut    string
	trials     int
	ops        int
	seed       int64
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "volplay",
		Short:        "axis playback for volumetric time series",
		SilenceUsage: true,
		RunE:         runView,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".volplay", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().DurationVar(&interval, "interval", 0, "step interval (overrides config)")
	rootCmd.PersistentFlags().StringVar(&axisName, "axis", "", "axis to play: x, y, z or t (overrides config)")

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "open the interactive viewer",
		RunE:  runView,
	}

	playCmd := &cobra.Command{
		Use:   "play",
		Short: "play headless in real time and print every step",
		RunE:  runPlay,
	}
	playCmd.Flags().DurationVar(&duration, "duration", 3*time.Second, "how long to play")

	traceCmd := &cobra.Command{
		Use:   "trace [scenario.yaml]",
		Short: "replay a scenario on a virtual clock",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrace,
	}
	traceCmd.Flags().BoolVar(&saveTrace, "save", false, "save the trace to the data directory")
	traceCmd.Flags().StringVar(&jsonOut, "json", "", "write the trace as JSON to this path (- for stdout)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved traces",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot cursor position per axis for a saved trace",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print saved trace metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	stressCmd := &cobra.Command{
		Use:   "stress",
		Short: "drive controllers with random interactions and check invariants",
		RunE:  runStress,
	}
	stressCmd.Flags().IntVar(&trials, "trials", 100, "number of trials")
	stressCmd.Flags().IntVar(&ops, "ops", 500, "operations per trial")
	stressCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 for time based)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				d := p.Volume.Dims
				fmt.Printf("  %-10s %dx%dx%d t=%d c=%d  interval=%v latency=%v\n",
					name, d.X, d.Y, d.Z, d.T, d.Channels, p.Playback.Interval, p.Loader.Latency)
			}
		},
	}

	rootCmd.AddCommand(viewCmd, playCmd, traceCmd, listCmd, plotCmd, exportCmd, stressCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers defaults, preset, config file, environment (including
// .env files in the working and data directories) and flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if err := config.LoadEnv(cfg, ".env", filepath.Join(dataDir, ".env")); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("interval") {
		cfg.Playback.Interval = interval
	}
	if cmd.Flags().Changed("axis") {
		axis, err := playback.ParseAxis(axisName)
		if err != nil {
			return nil, err
		}
		cfg.Playback.Autoplay = axis
	}
	return cfg, cfg.Validate()
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The TUI owns the terminal, so logs go to a file.
	if cfg.Log.File == "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return err
		}
		cfg.Log.File = filepath.Join(dataDir, "volplay.log")
	}
	logger, closer, err := logx.Setup(cfg.Log, nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	return viz.Run(cfg, logger)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closer, err := logx.Setup(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	axis := cfg.Playback.Autoplay
	if axis == playback.None {
		axis = playback.T
	}

	src, err := volume.NewSynthetic(cfg.Volume.Dims, cfg.Volume.Seed)
	if err != nil {
		return err
	}
	loader := volume.NewLoader(src, cfg.Loader.CacheFrames,
		volume.WithLatency(cfg.Loader.Latency),
		volume.WithLoaderLogger(logger),
	)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, duration)
	defer cancel()

	loop := clock.NewLoop(64)
	start := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ELAPSED\tAXIS\tCURSOR")

	session := viewer.New(ctx, loop, loop.Post, loader, viewer.Options{
		Interval: cfg.Playback.Interval,
		Prefetch: cfg.Loader.Prefetch,
		Logger:   logger,
		OnStep: func(a playback.Axis, c *volume.Cursor) {
			fmt.Fprintf(w, "%v\t%s\t%s\n", time.Since(start).Round(time.Millisecond), a, c)
		},
	})

	loop.Post(func() {
		session.Start()
		session.Controller().Play(axis)
	})
	// Run only returns once the duration elapses or the user interrupts.
	loop.Run(ctx)

	// Run has returned, so this goroutine now owns the session.
	session.Close()
	cancel()
	loader.Wait()

	if err := w.Flush(); err != nil {
		return err
	}
	st := loader.Stats()
	fmt.Printf("\n%d steps in %v, %d loads, %s resident\n",
		session.Steps(), time.Since(start).Round(time.Millisecond), st.Loads, humanize.Bytes(st.ResidentBytes))
	return nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closer, err := logx.Setup(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interval") {
		scenario.Interval = interval
	}

	tr, err := automation.RunScenario(scenario, logger)
	if err != nil {
		return err
	}

	fmt.Printf("scenario: %s\n", tr.Scenario)
	if scenario.Description != "" {
		fmt.Printf("  %s\n", scenario.Description)
	}
	fmt.Printf("interval: %v  until: %v\n\n", tr.Interval, tr.Until)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tEVENT\tAXIS\tINDEX")
	steps, changes := tr.Steps, tr.Changes
	// Merge steps and axis changes by time; a change at the same instant
	// precedes the step it triggers.
	for len(steps) > 0 || len(changes) > 0 {
		if len(changes) > 0 && (len(steps) == 0 || changes[0].At <= steps[0].At) {
			fmt.Fprintf(w, "%v\taxis\t%s\t\n", changes[0].At, changes[0].Axis)
			changes = changes[1:]
			continue
		}
		fmt.Fprintf(w, "%v\tstep\t%s\t%d\n", steps[0].At, steps[0].Axis, steps[0].Index)
		steps = steps[1:]
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nsteps: %d  max pending timers: %d  final: %+v\n", len(tr.Steps), tr.MaxPending, tr.Final)

	if saveTrace {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(tr)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	switch jsonOut {
	case "":
	case "-":
		return storage.WriteJSON(os.Stdout, tr)
	default:
		if err := storage.ExportJSON(jsonOut, tr); err != nil {
			return err
		}
		fmt.Printf("exported to %s\n", jsonOut)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tSAVED\tINTERVAL\tUNTIL\tSTEPS\tFINAL")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\t%s\t%s\n",
			run.ID,
			run.Scenario,
			humanize.Time(run.Timestamp),
			run.Interval,
			run.Until,
			humanize.Comma(int64(run.Steps)),
			run.Final,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	steps, err := st.LoadSteps(runID)
	if err != nil {
		return err
	}

	if len(steps) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("steps: %d\n\n", len(steps))

	for _, axis := range playback.Axes {
		var data []float64
		for _, s := range steps {
			if s.Axis == axis {
				data = append(data, float64(s.Index))
			}
		}
		if len(data) < 2 {
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(60),
			asciigraph.Caption(fmt.Sprintf("%s index per step", axis)),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func runStress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	_, closer, err := logx.Setup(cfg.Log, io.Discard)
	if err != nil {
		return err
	}
	defer closer.Close()

	start := time.Now()
	results, err := automation.RunMonteCarlo(&automation.MonteCarloConfig{
		NumTrials: trials,
		OpsPerRun: ops,
		Interval:  cfg.Playback.Interval,
		Seed:      seed,
	})
	if err != nil {
		return err
	}
	clean, violated := automation.MonteCarloStats(results)

	total := 0
	for _, r := range results {
		total += r.Steps
		for _, v := range r.Violations {
			fmt.Printf("trial %d: %s\n", r.TrialID, v)
		}
	}
	fmt.Printf("%d trials, %s ops, %s steps in %v\n",
		len(results), humanize.Comma(int64(trials*ops)), humanize.Comma(int64(total)), time.Since(start).Round(time.Millisecond))
	fmt.Printf("clean: %d  violated: %d\n", clean, violated)
	if violated > 0 {
		return fmt.Errorf("%d trials violated controller invariants", violated)
	}
	return nil
}
