package main

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/koji/shadertoyrec/internal/config"
	"github.com/koji/shadertoyrec/internal/recorder"
	"github.com/koji/shadertoyrec/internal/statemachine"
)

// captureDaemonLogs points the daemon loggers at a buffer for the duration of
// a test and restores them afterwards.
func captureDaemonLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevErr := outLog, errLog
	outLog = log.New(&buf, "", 0)
	errLog = log.New(&buf, "ERROR: ", 0)
	t.Cleanup(func() {
		outLog, errLog = prevOut, prevErr
	})
	return &buf
}

func TestStopWhileIdleIsReported(t *testing.T) {
	buf := captureDaemonLogs(t)
	setLastAction("")
	setLastError("")

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	sm := statemachine.New(cfg.StopThreshold)
	rec := recorder.NewCanvasRecorder(cfg, "test")

	handleStopRecording(sm, rec, "user_stop")

	if !strings.Contains(buf.String(), "Stop request ignored") {
		t.Errorf("idle stop not logged, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "reason=user_stop") {
		t.Errorf("log should carry the stop reason, got:\n%s", buf.String())
	}
	if lastAction != "stop_ignored: no recording in progress" {
		t.Errorf("lastAction = %q, want the rejection surfaced in status", lastAction)
	}
	if lastError != "" {
		t.Errorf("idle stop is a no-op, not an error; lastError = %q", lastError)
	}
}
