package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// RecordingState is the persisted UI-facing recording indicator. The popup UI
// reads it on reopen to reconstruct the in-progress timer display; the capture
// core itself never reads or writes it.
type RecordingState string

const (
	StateRecording RecordingState = "recording"
	StateStopped   RecordingState = "stopped"
)

// StatusSnapshot represents the complete daemon state at a point in time.
type StatusSnapshot struct {
	RecordingState     RecordingState `json:"recording_state"`        // "recording" | "stopped"
	RecordingStartTime *time.Time     `json:"recording_start_time"`   // null when stopped
	PageDetected       bool           `json:"page_detected"`          // compatible page is an active target
	PageURL            string         `json:"page_url,omitempty"`     // detected page URL
	PageTitle          string         `json:"page_title,omitempty"`   // detected page title
	BrowserConnected   bool           `json:"browser_connected"`      // DevTools endpoint reachable
	LastArtifact       string         `json:"last_artifact,omitempty"`// path of the most recent saved recording
	LastAction         string         `json:"last_action"`            // last action taken
	LastError          string         `json:"last_error"`             // last error message
	Timestamp          time.Time      `json:"timestamp"`              // snapshot time
}

// CacheDir returns the daemon cache directory (~/.cache/shadertoyrec).
func CacheDir() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "shadertoyrec")
}

// WriteStatus persists StatusSnapshot to ~/.cache/shadertoyrec/status.json
// using atomic write.
func WriteStatus(status *StatusSnapshot) error {
	cacheDir := CacheDir()
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return err
	}

	statusPath := filepath.Join(cacheDir, "status.json")
	return atomicWriteJSON(statusPath, status)
}

// ReadStatus loads StatusSnapshot from ~/.cache/shadertoyrec/status.json.
func ReadStatus() (*StatusSnapshot, error) {
	statusPath := filepath.Join(CacheDir(), "status.json")

	data, err := os.ReadFile(statusPath)
	if err != nil {
		return nil, err
	}

	var status StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// atomicWriteJSON writes data to a file atomically using temp file + rename.
func atomicWriteJSON(path string, data interface{}) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "status-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	// Ensure cleanup on error
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	// Write JSON with indentation for readability
	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}

	// Sync to disk before rename
	if err := tmpFile.Sync(); err != nil {
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil // Prevent defer cleanup

	return os.Rename(tmpPath, path)
}
