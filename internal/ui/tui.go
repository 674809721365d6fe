// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the passthrough UI
package ui

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/engine"
	tea "github.com/charmbracelet/bubbletea"
)

// NewModel creates a new TUI model
func NewModel(engineLabel string) Model {
	return Model{
		engine: engineLabel,
	}
}

// EngineLabel describes an engine selection for the header
func EngineLabel(kind engine.Kind, params engine.Params) string {
	if kind == "" {
		kind = engine.KindWSOLA
	}
	return fmt.Sprintf("%s, %+.1f semitones", kind, params.Semitones)
}

// Run creates the TUI program. The caller runs it and feeds it StatusMsg.
func Run(engineLabel string) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(engineLabel), tea.WithAltScreen())
	return p, nil
}
