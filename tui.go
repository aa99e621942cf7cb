package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"callsight/insight"
	"callsight/timeline"
)

// TUI message types
type SessionStartedMsg struct{}
type SessionStoppedMsg struct{}
type DurationTickMsg struct{ Elapsed int }
type AudioLevelMsg struct{ Level float64 }
type WaveformMsg struct{ Samples []float64 }
type SnapshotMsg struct{ Snap insight.Snapshot }
type NoVoiceMsg struct{ Active bool }
type TransportLostMsg struct{}
type SessionErrorMsg struct{ Err error }
type DeviceLineMsg struct{ Text string }
type PlaybackReadyMsg struct{ Duration float64 }
type PlaybackTickMsg struct{ Position float64 }
type PlaybackFinishedMsg struct{}

// uiCommand flows from key handling back to the controller loop in run().
type uiCommand int

const (
	cmdToggle uiCommand = iota // start/stop capture, or play/pause review
	cmdSeekBack
	cmdSeekForward
	cmdNextSegment
	cmdPrevSegment
)

type uiMode int

const (
	modeLive uiMode = iota
	modeReview
)

type tuiModel struct {
	mode uiMode
	cmds chan<- uiCommand
	idx  *timeline.Index

	width, height int

	// live state
	recording  bool
	elapsed    int
	audioLevel float64
	wave       []float64
	noVoice    bool
	lost       bool
	lastErr    string
	deviceLine string

	// review state
	duration float64
	position float64

	snap insight.Snapshot
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func NewTUIProgram(mode uiMode, idx *timeline.Index, cmds chan<- uiCommand) *tea.Program {
	m := tuiModel{mode: mode, idx: idx, cmds: cmds, snap: insight.NewSnapshot()}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (m tuiModel) command(c uiCommand) {
	select {
	case m.cmds <- c:
	default:
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "enter":
			m.command(cmdToggle)
		case "left", "h":
			if m.mode == modeReview {
				m.command(cmdSeekBack)
			}
		case "right", "l":
			if m.mode == modeReview {
				m.command(cmdSeekForward)
			}
		case "n", "j":
			if m.mode == modeReview {
				m.command(cmdNextSegment)
			}
		case "p", "k":
			if m.mode == modeReview {
				m.command(cmdPrevSegment)
			}
		}

	case SessionStartedMsg:
		m.recording = true
		m.elapsed = 0
		m.audioLevel = 0
		m.wave = nil
		m.noVoice = false
		m.lost = false
		m.lastErr = ""
		m.snap = insight.NewSnapshot()

	case SessionStoppedMsg:
		m.recording = false
		m.audioLevel = 0

	case DurationTickMsg:
		m.elapsed = msg.Elapsed

	case AudioLevelMsg:
		if m.recording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case WaveformMsg:
		m.wave = msg.Samples

	case SnapshotMsg:
		m.snap = msg.Snap

	case NoVoiceMsg:
		m.noVoice = msg.Active

	case TransportLostMsg:
		m.lost = true

	case SessionErrorMsg:
		m.lastErr = msg.Err.Error()
		m.recording = false

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case PlaybackReadyMsg:
		m.duration = msg.Duration

	case PlaybackTickMsg:
		m.position = msg.Position

	case PlaybackFinishedMsg:
		m.position = m.duration
	}
	return m, nil
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	speakerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("24"))
	entityStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("108"))
	waveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

func riskStyle(score float64) lipgloss.Style {
	switch {
	case score >= 70:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	case score >= 40:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	}
}

func formatClock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder

	switch m.mode {
	case modeLive:
		if m.recording {
			b.WriteString(recStyle.Render(fmt.Sprintf("● LIVE %s", formatClock(float64(m.elapsed)))))
			if m.lost {
				b.WriteString("  " + warnStyle.Render("⚠ backend connection lost"))
			}
			if m.noVoice {
				b.WriteString("  " + warnStyle.Render("⚠ no voice detected"))
			}
		} else {
			b.WriteString(idleStyle.Render("○ STANDBY"))
		}
		b.WriteString("\n")
		if m.deviceLine != "" {
			b.WriteString(dimStyle.Render(m.deviceLine) + "\n")
		}
		b.WriteString(waveStyle.Render(renderWaveform(m.wave, m.width-2)) + "\n")

	case modeReview:
		b.WriteString(speakerStyle.Render("▶ REVIEW ") +
			labelStyle.Render(formatClock(m.position)+" / "+formatClock(m.duration)) + "\n")
		b.WriteString(renderProgress(m.position, m.duration, m.width-2) + "\n")
	}

	if m.lastErr != "" {
		b.WriteString(warnStyle.Render("error: "+m.lastErr) + "\n")
	}

	// Insight panel
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("risk ") +
		riskStyle(m.snap.RiskScore).Render(fmt.Sprintf("%3.0f", m.snap.RiskScore)) +
		labelStyle.Render("   sentiment ") + labelStyle.Render(m.snap.Sentiment) + "\n")

	if len(m.snap.Entities) > 0 {
		b.WriteString(labelStyle.Render("entities ") + entityStyle.Render(renderEntities(m.snap.Entities, m.width-11)) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderTranscript())

	b.WriteString("\n")
	switch m.mode {
	case modeLive:
		b.WriteString(helpStyle.Render("space start/stop · q quit"))
	case modeReview:
		b.WriteString(helpStyle.Render("space play/pause · ←/→ seek 5s · n/p segment · q quit"))
	}

	return b.String()
}

// currentTime is the position the transcript highlight follows: playback
// position in review, elapsed capture time in live.
func (m tuiModel) currentTime() float64 {
	if m.mode == modeReview {
		return m.position
	}
	return float64(m.elapsed)
}

func (m tuiModel) renderTranscript() string {
	if len(m.snap.Segments) == 0 {
		return dimStyle.Render("(no transcript yet)") + "\n"
	}

	var activeID int64 = -1
	if m.idx != nil {
		if seg, ok := m.idx.ActiveSegment(m.currentTime()); ok {
			activeID = seg.ID
		}
	}

	// Show the tail that fits; keep the active segment in view.
	visible := m.height - 10
	if visible < 3 {
		visible = 3
	}
	segs := m.snap.Segments
	start := 0
	if len(segs) > visible {
		start = len(segs) - visible
		for i, seg := range segs {
			if seg.ID == activeID && i < start {
				start = i
				break
			}
		}
		if start+visible > len(segs) {
			start = len(segs) - visible
		}
	}

	var b strings.Builder
	for _, seg := range segs[start : min(start+visible, len(segs))] {
		line := fmt.Sprintf("[%s] %s: %s", formatClock(seg.StartTime), seg.Speaker, seg.Text)
		if len(line) > m.width-2 && m.width > 5 {
			line = line[:m.width-5] + "..."
		}
		if seg.ID == activeID {
			b.WriteString(activeStyle.Render(line))
		} else {
			b.WriteString(labelStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

var waveGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// renderWaveform downsamples the amplitude window into one bar glyph per
// column. RMS of speech rarely exceeds ~0.3, so gain stretches the
// usable range.
func renderWaveform(samples []float64, width int) string {
	if width < 4 {
		width = 4
	}
	bars := make([]rune, width)
	for i := range bars {
		bars[i] = ' '
	}
	if len(samples) == 0 {
		return string(bars)
	}

	const gain = 3.0
	perBar := float64(len(samples)) / float64(width)
	if perBar < 1 {
		perBar = 1
	}
	for i := 0; i < width; i++ {
		lo := int(float64(i) * perBar)
		hi := int(float64(i+1) * perBar)
		if lo >= len(samples) {
			break
		}
		if hi > len(samples) {
			hi = len(samples)
		}
		peak := 0.0
		for _, v := range samples[lo:hi] {
			if v > peak {
				peak = v
			}
		}
		level := peak * gain
		if level > 1 {
			level = 1
		}
		bars[i] = waveGlyphs[int(level*float64(len(waveGlyphs)-1))]
	}
	return string(bars)
}

func renderProgress(pos, dur float64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := 0
	if dur > 0 {
		filled = int(pos / dur * float64(width))
		if filled > width {
			filled = width
		}
	}
	return waveStyle.Render(strings.Repeat("━", filled)) +
		dimStyle.Render(strings.Repeat("─", width-filled))
}

func renderEntities(entities []insight.Entity, width int) string {
	parts := make([]string, len(entities))
	for i, e := range entities {
		parts[i] = e.Type + ":" + e.Value
	}
	line := strings.Join(parts, "  ")
	if width > 5 && len(line) > width {
		line = line[:width-3] + "..."
	}
	return line
}

// seekStep is how far the arrow keys move review playback.
const seekStep = 5 * time.Second
