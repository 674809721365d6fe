// ABOUTME: Tests for the device table
// ABOUTME: Tests listing through a simulated driver
package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/resonate-pitch/internal/audiotest"
)

func TestListDevices(t *testing.T) {
	drv := audiotest.NewDriver()
	c := New(drv, Config{})

	var buf bytes.Buffer
	if err := ListDevices(&buf, c); err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"NAME", ">0", "Sim Mic", "<1", "Sim Speakers", "44100"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in table:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != 3 {
		t.Errorf("expected header and 2 rows, got %d lines", lines)
	}
	if drv.Terminates() != 1 {
		t.Errorf("expected driver terminated after listing, got %d", drv.Terminates())
	}
}
