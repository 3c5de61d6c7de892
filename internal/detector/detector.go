package detector

import "time"

// DetectionState represents the current compatible-page evaluation. Recording
// can only start while a compatible page is an active target.
type DetectionState struct {
	PageDetected bool      `json:"page_detected"` // a compatible page target exists
	RuleName     string    `json:"rule_name"`     // which page rule matched
	SurfaceID    string    `json:"surface_id"`    // canvas element id from the matching rule
	TargetURL    string    `json:"target_url"`    // URL of the matched target
	TargetTitle  string    `json:"target_title"`  // title of the matched target
	SocketURL    string    `json:"socket_url"`    // webSocketDebuggerUrl of the matched target
	EvaluatedAt  time.Time `json:"evaluated_at"`  // when evaluated
}

// Detector is the interface for compatible-page detection.
type Detector interface {
	Detect() (*DetectionState, error)
	Name() string
}
