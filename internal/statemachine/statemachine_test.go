package statemachine

import (
	"testing"

	"github.com/koji/shadertoyrec/internal/detector"
)

func detected() detector.DetectionState {
	return detector.DetectionState{PageDetected: true, RuleName: "shadertoy", SurfaceID: "demogl"}
}

func gone() detector.DetectionState {
	return detector.DetectionState{PageDetected: false}
}

func TestProcessDetection_noStopWhileIdle(t *testing.T) {
	sm := New(3)
	for i := 0; i < 10; i++ {
		if sm.ProcessDetection(gone()) {
			t.Fatal("idle machine must never request a stop")
		}
	}
}

func TestProcessDetection_stopAfterThreshold(t *testing.T) {
	sm := New(3)
	sm.StartRecording("shadertoy")

	if sm.ProcessDetection(gone()) {
		t.Error("one missed poll should not stop the recording")
	}
	if sm.ProcessDetection(gone()) {
		t.Error("two missed polls should not stop the recording")
	}
	if !sm.ProcessDetection(gone()) {
		t.Error("third consecutive missed poll should request a stop")
	}
}

func TestProcessDetection_detectionResetsAbsence(t *testing.T) {
	sm := New(2)
	sm.StartRecording("shadertoy")

	sm.ProcessDetection(gone())
	sm.ProcessDetection(detected())
	if sm.GetAbsenceStreak() != 0 {
		t.Errorf("absence streak = %d after re-detection, want 0", sm.GetAbsenceStreak())
	}
	if sm.ProcessDetection(gone()) {
		t.Error("absence streak must restart after the page reappears")
	}
	if !sm.ProcessDetection(gone()) {
		t.Error("threshold reached after restart, expected stop")
	}
}

func TestProcessDetection_streaksTrackWhileIdle(t *testing.T) {
	sm := New(3)
	sm.ProcessDetection(detected())
	sm.ProcessDetection(detected())
	if sm.GetDetectionStreak() != 2 {
		t.Errorf("detection streak = %d, want 2", sm.GetDetectionStreak())
	}
	sm.ProcessDetection(gone())
	if sm.GetDetectionStreak() != 0 {
		t.Errorf("detection streak = %d after absence, want 0", sm.GetDetectionStreak())
	}
}

func TestForceStartStop(t *testing.T) {
	sm := New(3)
	if err := sm.ForceStart("shadertoy"); err != nil {
		t.Fatalf("ForceStart: %v", err)
	}
	if !sm.IsRecording() {
		t.Error("not recording after ForceStart")
	}
	if sm.RecordingRule() != "shadertoy" {
		t.Errorf("recording rule = %q", sm.RecordingRule())
	}
	if err := sm.ForceStart("shadertoy"); err == nil {
		t.Error("second ForceStart should fail")
	}
	if err := sm.ForceStop(); err != nil {
		t.Fatalf("ForceStop: %v", err)
	}
	if err := sm.ForceStop(); err == nil {
		t.Error("ForceStop while idle should fail")
	}
	if sm.RecordingDuration() != 0 {
		t.Error("duration should be zero while idle")
	}
}

func TestNew_defaultThreshold(t *testing.T) {
	sm := New(0)
	sm.StartRecording("shadertoy")
	stops := 0
	for i := 0; i < 3; i++ {
		if sm.ProcessDetection(gone()) {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("default threshold should trigger exactly once in 3 polls, got %d", stops)
	}
}
