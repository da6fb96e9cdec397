package viz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/volplay/internal/config"
	"github.com/san-kum/volplay/internal/playback"
	"github.com/san-kum/volplay/internal/viewer"
	"github.com/san-kum/volplay/internal/volume"
)

const (
	previewWidth  = 64
	previewHeight = 20
	// ScrubIdle is how long after the last scrub key the hold is released.
	// Terminals report no key-up, so an idle gap ends the interaction.
	ScrubIdle = 400 * time.Millisecond
)

type playMsg struct{ axis playback.Axis }

type releaseMsg struct{ seq int }

// Model is the bubbletea model for the volume viewer. Every controller call
// happens inside Update.
type Model struct {
	session   *viewer.Session
	autoplay  playback.Axis
	focus     playback.Axis
	channel   int
	scrubSeq  int
	scrubbing bool
	showHelp  bool
	lastErr   error
}

// NewModel wraps a session. autoplay, if not None, starts on Init.
func NewModel(session *viewer.Session, autoplay playback.Axis) Model {
	focus := playback.Z
	if autoplay != playback.None {
		focus = autoplay
	}
	return Model{
		session:  session,
		autoplay: autoplay,
		focus:    focus,
	}
}

func (m Model) Init() tea.Cmd {
	m.session.Start()
	if m.autoplay == playback.None {
		return nil
	}
	axis := m.autoplay
	return func() tea.Msg { return playMsg{axis: axis} }
}

// Update handles input, timers and load completions.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case timerMsg:
		msg.t.fire()
	case postMsg:
		msg.f()
	case playMsg:
		m.session.Controller().Play(msg.axis)
	case releaseMsg:
		if msg.seq == m.scrubSeq && m.scrubbing {
			m.scrubbing = false
			m.session.Release()
		}
	case tea.KeyMsg:
		m.lastErr = nil
		switch msg.String() {
		case "q", "ctrl+c":
			m.session.Close()
			return m, tea.Quit
		case " ":
			m.session.Toggle(m.focus)
		case "x", "y", "z", "t":
			axis, _ := playback.ParseAxis(msg.String())
			m.focus = axis
			m.session.Controller().Play(axis)
		case "tab":
			m.cycleFocus()
		case "[":
			return m, m.scrub(-1)
		case "]":
			return m, m.scrub(1)
		case "c":
			m.channel = (m.channel + 1) % m.session.Cursor().Dims().Channels
		case "T":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	}
	return m, nil
}

func (m *Model) cycleFocus() {
	for i, a := range playback.Axes {
		if a == m.focus {
			m.focus = playback.Axes[(i+1)%len(playback.Axes)]
			return
		}
	}
	m.focus = playback.X
}

// scrub moves the focused axis under a hold and arms the idle release.
func (m *Model) scrub(delta int) tea.Cmd {
	if err := m.session.Scrub(m.focus, delta); err != nil {
		m.lastErr = err
		return nil
	}
	m.scrubbing = true
	m.scrubSeq++
	seq := m.scrubSeq
	return tea.Tick(ScrubIdle, func(time.Time) tea.Msg { return releaseMsg{seq: seq} })
}

// sliceAxis is the axis the preview cuts across.
func (m Model) sliceAxis() playback.Axis {
	if m.focus.Spatial() {
		return m.focus
	}
	return playback.Z
}

// View renders the preview next to the status panel.
func (m Model) View() string {
	th := CurrentTheme
	cur := m.session.Cursor()
	ctrl := m.session.Controller()

	var preview string
	if frame, ok := m.session.CurrentFrame(); ok {
		axis := m.sliceAxis()
		plane, w, h, err := volume.Slice(frame, cur.Dims(), axis, cur.Index(axis), m.channel)
		if err != nil {
			preview = err.Error()
		} else {
			preview = renderPlane(plane, w, h, previewWidth, previewHeight, th.ChannelColor(m.channel))
			if h > 1 {
				preview += "\n\n" + lipgloss.NewStyle().Foreground(th.Accent).Render(
					asciigraph.Plot(rowProfile(plane, w, h), asciigraph.Height(4), asciigraph.Width(40), asciigraph.Caption("row intensity")))
			}
		}
	} else {
		preview = lipgloss.NewStyle().Foreground(th.Waiting).Render(fmt.Sprintf("loading t=%d ...", cur.Index(playback.T)))
	}
	previewView := panelStyle.BorderForeground(th.Muted).Render(preview)

	value := lipgloss.NewStyle().Foreground(th.Text)
	label := labelStyle.Foreground(th.Muted)

	var s strings.Builder
	s.WriteString(headerStyle.Foreground(th.Primary).Render("VOLPLAY") + "\n")
	s.WriteString(m.status(th) + "\n\n")
	for _, a := range playback.Axes {
		line := fmt.Sprintf("%d / %d", cur.Index(a)+1, cur.Dims().Extent(a))
		name := a.String()
		if a == m.focus {
			name = "> " + name
		}
		s.WriteString(label.Render(name) + value.Render(line) + "\n")
	}
	s.WriteString(label.Render("channel") + lipgloss.NewStyle().Foreground(th.ChannelColor(m.channel)).Render(fmt.Sprintf("%d", m.channel)) + "\n")
	s.WriteString(label.Render("interval") + value.Render(ctrl.Interval().String()) + "\n")
	s.WriteString(label.Render("steps") + value.Render(humanize.Comma(int64(m.session.Steps()))) + "\n")

	st := m.session.Loader().Stats()
	s.WriteString("\nCACHE\n")
	s.WriteString(label.Render("resident") + value.Render(fmt.Sprintf("%d (%s)", st.Resident, humanize.Bytes(st.ResidentBytes))) + "\n")
	s.WriteString(label.Render("hits") + value.Render(humanize.Comma(int64(st.Hits))) + "\n")
	s.WriteString(label.Render("misses") + value.Render(humanize.Comma(int64(st.Misses))) + "\n")
	s.WriteString(label.Render("loads") + value.Render(humanize.Comma(int64(st.Loads))) + "\n")
	if m.lastErr != nil {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(th.Accent).Render(m.lastErr.Error()) + "\n")
	}
	s.WriteString(helpStyle.Foreground(th.Muted).Render("SP:Play/Pause xyzt:Axis Tab:Focus\n[ ]:Scrub c:Channel T:Theme ?:Help q:Quit"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, previewView, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

func (m Model) status(th Theme) string {
	snap := m.session.Controller().Snapshot()
	switch {
	case snap.Holding && snap.Playing != playback.None:
		return lipgloss.NewStyle().Foreground(th.Held).Render("HELD " + strings.ToUpper(snap.Playing.String()))
	case snap.Holding:
		return lipgloss.NewStyle().Foreground(th.Held).Render("SCRUBBING")
	case snap.Waiting:
		return lipgloss.NewStyle().Foreground(th.Waiting).Render("WAITING " + strings.ToUpper(snap.Playing.String()))
	case snap.Playing != playback.None:
		return lipgloss.NewStyle().Foreground(th.Playing).Render("PLAYING " + strings.ToUpper(snap.Playing.String()))
	}
	return lipgloss.NewStyle().Foreground(th.Muted).Render("PAUSED")
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Play/Pause focused axis  ║
║  x y z t  - Play along an axis       ║
║  Tab      - Cycle focused axis       ║
║  [ ]      - Scrub focused axis       ║
║  C        - Cycle channel            ║
║  Shift+T  - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// Run opens the interactive viewer and blocks until the user quits.
func Run(cfg *config.Config, logger *slog.Logger) error {
	SetTheme(cfg.Theme)

	src, err := volume.NewSynthetic(cfg.Volume.Dims, cfg.Volume.Seed)
	if err != nil {
		return err
	}
	loader := volume.NewLoader(src, cfg.Loader.CacheFrames,
		volume.WithLatency(cfg.Loader.Latency),
		volume.WithLoaderLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := NewScheduler()
	session := viewer.New(ctx, sched, sched.Post, loader, viewer.Options{
		Interval: cfg.Playback.Interval,
		Prefetch: cfg.Loader.Prefetch,
		Logger:   logger,
	})

	p := tea.NewProgram(NewModel(session, cfg.Playback.Autoplay), tea.WithAltScreen())
	sched.Attach(p)
	_, err = p.Run()

	session.Close()
	cancel()
	loader.Wait()
	return err
}
