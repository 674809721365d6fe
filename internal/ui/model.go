// ABOUTME: Bubbletea model for the passthrough TUI
// ABOUTME: Defines display state and update logic
package ui

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/internal/app"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Fixed at startup
	engine string

	// Latest controller snapshot
	status   app.Status
	received bool
	now      time.Time

	// Stats since the previous snapshot, for rates
	prevFrames uint64
	prevAt     time.Time
	frameRate  float64

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderDevices()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders state and stream format
func (m Model) renderHeader() string {
	state := "Starting"
	if m.received {
		state = m.status.State.String()
	}

	format := "-"
	if m.status.Config.Format.Valid() {
		format = m.status.Config.String()
		if m.status.FellBack {
			format += " (fallback)"
		}
	}

	return fmt.Sprintf(`┌─ Resonate Pitch ─────────────────────────────────────┐
│ Status: %-44s │
│ Format: %-44s │
│ Engine: %-44s │
├──────────────────────────────────────────────────────┤
`, truncate(state, 44), truncate(format, 44), truncate(m.engine, 44))
}

// renderDevices renders the selected devices
func (m Model) renderDevices() string {
	if m.status.Input.Name == "" && m.status.Output.Name == "" {
		return "│ No devices selected                                  │\n"
	}

	return fmt.Sprintf("│ In:  %-47s │\n│ Out: %-47s │\n",
		truncate(deviceLabel(m.status.Input), 47), truncate(deviceLabel(m.status.Output), 47))
}

// renderStats renders pipeline statistics
func (m Model) renderStats() string {
	st := m.status.Stats

	uptime := time.Duration(0)
	if !m.status.StartedAt.IsZero() && !m.now.IsZero() {
		uptime = m.now.Sub(m.status.StartedAt).Truncate(time.Second)
	}

	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Callbacks: %-12d Frames: %-18d │
│ Padded:    %-12d Silent: %-18d │
│ No input:  %-12d Faults: %-18d │
│ Dropped:   %-12d Delay:  %-18s │
│ Rate:      %-12s Uptime: %-18s │
│                                                      │
`, st.Callbacks, st.Frames,
		st.PaddedFrames, st.SilentBuffers,
		st.MissingInput, st.Faults,
		st.DroppedFrames, fmt.Sprintf("%d frames", m.status.LatencyFrames),
		fmt.Sprintf("%.0f f/s", m.frameRate), uptime)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ d:Debug  q:Quit                                      │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Session: %-41s │
│   Driver:  %-41s │
│   Buffer:  %-41s │
`, truncate(m.status.SessionID, 41), m.status.Driver,
		fmt.Sprintf("%d frames", m.status.FramesPerBuffer))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	at := msg.At
	if at.IsZero() {
		at = time.Now()
	}

	if !m.prevAt.IsZero() && at.After(m.prevAt) && msg.Status.Stats.Frames >= m.prevFrames {
		m.frameRate = float64(msg.Status.Stats.Frames-m.prevFrames) / at.Sub(m.prevAt).Seconds()
	}
	m.prevFrames = msg.Status.Stats.Frames
	m.prevAt = at

	m.status = msg.Status
	m.received = true
	m.now = at
}

// StatusMsg carries a controller snapshot taken at At
type StatusMsg struct {
	Status app.Status
	At     time.Time
}

// Utility functions
func deviceLabel(d audio.DeviceCapabilities) string {
	if d.HostAPI == "" {
		return fmt.Sprintf("[%d] %s", d.ID, d.Name)
	}
	return fmt.Sprintf("[%d] %s (%s)", d.ID, d.Name, d.HostAPI)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
