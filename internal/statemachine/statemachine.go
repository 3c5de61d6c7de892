// Package statemachine tracks compatible-page presence across detector polls.
// Recording starts are always user-initiated; the machine's job is deciding
// when a live recording must be force-stopped because its page went away.
package statemachine

import (
	"fmt"
	"time"

	"github.com/koji/shadertoyrec/internal/detector"
)

// StateMachine debounces page detection so one missed poll (slow tab, busy
// DevTools endpoint) does not kill a recording.
type StateMachine struct {
	stopThreshold   int
	recording       bool
	recordingRule   string
	recordingStart  time.Time
	detectionStreak int // Consecutive detections
	absenceStreak   int // Consecutive non-detections
}

// New creates a state machine that force-stops after stopThreshold
// consecutive page-gone polls.
func New(stopThreshold int) *StateMachine {
	if stopThreshold < 1 {
		stopThreshold = 3
	}
	return &StateMachine{stopThreshold: stopThreshold}
}

// ProcessDetection evaluates one detector poll and reports whether the active
// recording should be force-stopped.
func (sm *StateMachine) ProcessDetection(state detector.DetectionState) bool {
	if state.PageDetected {
		sm.absenceStreak = 0
		sm.detectionStreak++
		return false
	}

	sm.detectionStreak = 0
	sm.absenceStreak++

	return sm.recording && sm.absenceStreak >= sm.stopThreshold
}

// StartRecording updates state to reflect recording started
func (sm *StateMachine) StartRecording(ruleName string) {
	sm.recording = true
	sm.recordingRule = ruleName
	sm.recordingStart = time.Now()
	sm.detectionStreak = 0
	sm.absenceStreak = 0
}

// StopRecording updates state to reflect recording stopped
func (sm *StateMachine) StopRecording() {
	sm.recording = false
	sm.recordingRule = ""
	sm.recordingStart = time.Time{}
	sm.detectionStreak = 0
	sm.absenceStreak = 0
}

// ForceStart manually starts recording (from command interface)
func (sm *StateMachine) ForceStart(ruleName string) error {
	if sm.recording {
		return fmt.Errorf("already recording")
	}
	sm.StartRecording(ruleName)
	return nil
}

// ForceStop manually stops recording (from command interface)
func (sm *StateMachine) ForceStop() error {
	if !sm.recording {
		return fmt.Errorf("not recording")
	}
	sm.StopRecording()
	return nil
}

// IsRecording returns current recording status
func (sm *StateMachine) IsRecording() bool {
	return sm.recording
}

// RecordingRule returns the page rule the current recording was started under
func (sm *StateMachine) RecordingRule() string {
	return sm.recordingRule
}

// RecordingDuration returns how long current recording has been active
func (sm *StateMachine) RecordingDuration() time.Duration {
	if !sm.recording {
		return 0
	}
	return time.Since(sm.recordingStart)
}

// GetDetectionStreak returns current detection streak count
func (sm *StateMachine) GetDetectionStreak() int {
	return sm.detectionStreak
}

// GetAbsenceStreak returns current absence streak count
func (sm *StateMachine) GetAbsenceStreak() int {
	return sm.absenceStreak
}
