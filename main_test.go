// ABOUTME: Tests for the entry point helpers
// ABOUTME: Tests that the failure exit path closes the log file first
package main

import (
	"os"
	"testing"
)

type recordingCloser struct {
	exited      *bool
	closes      int
	closedFirst bool
}

func (c *recordingCloser) Close() error {
	c.closes++
	c.closedFirst = !*c.exited
	return nil
}

func TestExitWithClosesLogFileFirst(t *testing.T) {
	exited := false
	code := -1
	osExit = func(c int) {
		exited = true
		code = c
	}
	defer func() { osExit = os.Exit }()

	f := &recordingCloser{exited: &exited}
	exitWith(f, 1)

	if f.closes != 1 {
		t.Errorf("expected log file closed once, got %d", f.closes)
	}
	if !f.closedFirst {
		t.Error("expected log file closed before exit")
	}
	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}
