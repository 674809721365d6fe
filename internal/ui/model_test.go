// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, rate calculation, key handling and rendering
package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/internal/app"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/engine"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/pipeline"
	tea "github.com/charmbracelet/bubbletea"
)

func runningStatus(frames uint64) app.Status {
	return app.Status{
		SessionID:     "session-1",
		Driver:        "sim",
		State:         app.StateRunning,
		Input:         audio.DeviceCapabilities{ID: 0, Name: "Mic", HostAPI: "ALSA"},
		Output:        audio.DeviceCapabilities{ID: 1, Name: "Speakers"},
		Config:        audio.StreamConfig{SampleRate: 48000, Channels: 2, Format: audio.Float32},
		LatencyFrames: 4096,
		Stats:         pipeline.Stats{Callbacks: 10, Frames: frames, DroppedFrames: 77},
	}
}

func TestNewModel(t *testing.T) {
	model := NewModel("wsola")

	if model.received {
		t.Error("expected no status initially")
	}
	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
	if model.engine != "wsola" {
		t.Errorf("expected engine label 'wsola', got '%s'", model.engine)
	}
}

func TestApplyStatus(t *testing.T) {
	model := NewModel("wsola")

	model.applyStatus(StatusMsg{Status: runningStatus(100)})

	if !model.received {
		t.Error("expected status to be received")
	}
	if model.status.State != app.StateRunning {
		t.Errorf("expected running, got %s", model.status.State)
	}
	if model.status.Stats.Frames != 100 {
		t.Errorf("expected 100 frames, got %d", model.status.Stats.Frames)
	}
}

func TestFrameRate(t *testing.T) {
	model := NewModel("wsola")
	start := time.Unix(1000, 0)

	model.applyStatus(StatusMsg{Status: runningStatus(0), At: start})
	if model.frameRate != 0 {
		t.Errorf("expected no rate after first snapshot, got %v", model.frameRate)
	}

	model.applyStatus(StatusMsg{Status: runningStatus(24000), At: start.Add(500 * time.Millisecond)})
	if model.frameRate != 48000 {
		t.Errorf("expected 48000 f/s, got %v", model.frameRate)
	}

	// A counter reset (new pipeline) keeps the previous rate
	model.applyStatus(StatusMsg{Status: runningStatus(10), At: start.Add(time.Second)})
	if model.frameRate != 48000 {
		t.Errorf("expected rate kept after reset, got %v", model.frameRate)
	}
}

func TestHandleKey(t *testing.T) {
	model := NewModel("wsola")

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	if cmd != nil {
		t.Error("expected no command for debug toggle")
	}
	if !updated.(Model).showDebug {
		t.Error("expected debug to be shown")
	}

	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestViewBeforeResize(t *testing.T) {
	if got := NewModel("wsola").View(); got != "Loading..." {
		t.Errorf("expected loading view, got %q", got)
	}
}

func TestViewRendersStatus(t *testing.T) {
	var m tea.Model = NewModel(EngineLabel(engine.KindWSOLA, engine.Params{Semitones: -4}))
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = m.Update(StatusMsg{Status: runningStatus(480)})

	view := m.View()
	for _, want := range []string{"running", "48000Hz Stereo float32", "wsola, -4.0 semitones", "[0] Mic (ALSA)", "[1] Speakers", "480", "Dropped:   77", "4096 frames"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}
	if strings.Contains(view, "Session:") {
		t.Error("debug section shown without toggle")
	}
}

func TestViewMarksFallback(t *testing.T) {
	status := runningStatus(0)
	status.Config.Format = audio.Int16
	status.FellBack = true

	var m tea.Model = NewModel("wsola")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = m.Update(StatusMsg{Status: status})

	if !strings.Contains(m.View(), "int16 (fallback)") {
		t.Errorf("expected fallback marker in view:\n%s", m.View())
	}
}

func TestEngineLabel(t *testing.T) {
	tests := []struct {
		kind     engine.Kind
		semis    float64
		expected string
	}{
		{engine.KindWSOLA, -4, "wsola, -4.0 semitones"},
		{engine.KindSpectral, 7, "spectral, +7.0 semitones"},
		{"", 0, "wsola, +0.0 semitones"},
	}

	for _, tt := range tests {
		result := EngineLabel(tt.kind, engine.Params{Semitones: tt.semis})
		if result != tt.expected {
			t.Errorf("EngineLabel(%q, %v) = %q, expected %q", tt.kind, tt.semis, result, tt.expected)
		}
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}
