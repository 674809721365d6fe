// ABOUTME: Tests for the status server
// ABOUTME: Tests the websocket feed, the metrics route and shutdown
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/internal/app"
	"github.com/Resonate-Protocol/resonate-pitch/internal/version"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/pipeline"
	"github.com/gorilla/websocket"
)

type fixedSource struct {
	status app.Status
}

func (f fixedSource) Status() app.Status {
	return f.status
}

func runningStatus() app.Status {
	return app.Status{
		SessionID:       "session-1",
		Driver:          "sim",
		State:           app.StateRunning,
		Input:           audio.DeviceCapabilities{ID: 0, Name: "Sim Mic", DefaultSampleRate: 48000},
		Output:          audio.DeviceCapabilities{ID: 1, Name: "Sim Speakers", HostAPI: "sim", DefaultSampleRate: 44100},
		Config:          audio.StreamConfig{SampleRate: 44100, Channels: 2, Format: audio.Int16},
		FramesPerBuffer: 512,
		LatencyFrames:   4096,
		FellBack:        true,
		StartedAt:       time.Unix(1000, 0),
		Stats:           pipeline.Stats{Callbacks: 4, Frames: 2048, PaddedFrames: 100, DroppedFrames: 30},
	}
}

func TestNewStatus(t *testing.T) {
	got := newStatus(runningStatus(), time.Unix(1010, 0))

	if got.State != "running" || got.SessionID != "session-1" || got.Driver != "sim" {
		t.Errorf("unexpected header fields %+v", got)
	}
	if got.Format != "int16" || got.Channels != 2 || got.SampleRate != 44100 || !got.FellBack {
		t.Errorf("unexpected config fields %+v", got)
	}
	if got.Input == nil || got.Input.Name != "Sim Mic" || got.Output == nil || got.Output.HostAPI != "sim" {
		t.Errorf("unexpected devices %+v %+v", got.Input, got.Output)
	}
	if got.UptimeSeconds != 10 {
		t.Errorf("expected 10s uptime, got %v", got.UptimeSeconds)
	}
	if got.LatencyFrames != 4096 {
		t.Errorf("expected latency 4096, got %d", got.LatencyFrames)
	}
	if got.Stats.Frames != 2048 || got.Stats.PaddedFrames != 100 || got.Stats.DroppedFrames != 30 {
		t.Errorf("unexpected stats %+v", got.Stats)
	}
}

func TestNewStatusBeforeSelection(t *testing.T) {
	got := newStatus(app.Status{SessionID: "s", Driver: "sim"}, time.Now())

	if got.State != "uninitialized" {
		t.Errorf("expected uninitialized, got %s", got.State)
	}
	if got.Input != nil || got.Output != nil {
		t.Error("expected no devices before selection")
	}
	if got.Format != "" || got.UptimeSeconds != 0 {
		t.Errorf("expected empty config, got %+v", got)
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, payload interface{}) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid message %s: %v", data, err)
	}
	if err := json.Unmarshal(msg.Payload, payload); err != nil {
		t.Fatalf("invalid payload %s: %v", msg.Payload, err)
	}
	return msg.Type
}

func TestStatusFeed(t *testing.T) {
	s := New(Config{Name: "test", Interval: 20 * time.Millisecond}, fixedSource{runningStatus()})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(ts.URL, "http")+"/status")
	defer conn.Close()

	var hello ServerHello
	if typ := readMessage(t, conn, &hello); typ != "server/hello" {
		t.Fatalf("expected server/hello, got %s", typ)
	}
	if hello.Name != "test" || hello.Version != version.Version || hello.IntervalMs != 20 {
		t.Errorf("unexpected hello %+v", hello)
	}

	for i := 0; i < 2; i++ {
		var status Status
		if typ := readMessage(t, conn, &status); typ != "server/status" {
			t.Fatalf("expected server/status, got %s", typ)
		}
		if status.State != "running" || status.Stats.Callbacks != 4 {
			t.Errorf("unexpected status %+v", status)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	s := New(Config{}, fixedSource{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStartStop(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Interval: 10 * time.Millisecond}, fixedSource{runningStatus()})

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(context.Background())
	}()

	select {
	case <-s.Ready():
	case err := <-errCh:
		t.Fatalf("Start failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	conn := dial(t, "ws://"+s.Addr().String()+"/status")
	defer conn.Close()

	var hello ServerHello
	readMessage(t, conn, &hello)

	s.Stop()
	s.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	if n := s.ClientCount(); n != 0 {
		t.Errorf("expected no clients after stop, got %d", n)
	}
}

func TestStartCancelledContext(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, fixedSource{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Start(ctx); err != nil {
		t.Errorf("expected clean stop, got %v", err)
	}
}

func TestStartListenError(t *testing.T) {
	s := New(Config{Addr: "bad-address"}, fixedSource{})
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected listen error")
	}
}
