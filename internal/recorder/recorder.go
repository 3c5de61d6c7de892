// Package recorder orchestrates one recording end to end: resolve the render
// surface, acquire the media stream, run the capture session, and persist the
// artifact when the session completes.
package recorder

import (
	"time"

	"github.com/koji/shadertoyrec/internal/detector"
	"github.com/koji/shadertoyrec/internal/diaglog"
)

// RecordingResult is the outcome of a completed recording, delivered to the
// OnCompleted callback after asynchronous finalization.
type RecordingResult struct {
	SessionID  string
	OutputPath string // empty when Err is set
	Profile    string
	StartedAt  time.Time
	StoppedAt  time.Time
	Duration   time.Duration
	ChunkCount int
	Err        error // ErrEmptyRecording, ErrEncoderFault, or a save failure
}

// State is a snapshot of the recorder for the status file.
type State struct {
	Recording  bool
	StartTime  time.Time
	OutputPath string // last saved artifact
}

// Recorder is the recording backend interface.
type Recorder interface {
	Start(det detector.DetectionState) error
	Stop(reason string) error
	GetState() State
	SetLogger(l *diaglog.Logger)
	OnCompleted(fn func(RecordingResult))
}
