package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Metadata is the sidecar JSON written alongside each recording.
type Metadata struct {
	Version    string    `json:"version"`
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at"`
	Duration   string    `json:"duration"`
	DurationMs int64     `json:"duration_ms"`
	PageURL    string    `json:"page_url,omitempty"`
	PageTitle  string    `json:"page_title,omitempty"`
	Profile    string    `json:"profile"`
	ChunkCount int       `json:"chunk_count"`
	OutputFile string    `json:"output_file"`
}

// WriteMetadata writes a <basepath>.meta.json sidecar next to the recording.
// Atomic write (temp + rename), same pattern as the status file.
func WriteMetadata(recordingPath string, meta *Metadata) error {
	metaPath := metadataPath(recordingPath)
	dir := filepath.Dir(metaPath)

	tmpFile, err := os.CreateTemp(dir, "meta-*.tmp")
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close metadata temp: %w", err)
	}
	success = true

	if err := os.Rename(tmpPath, metaPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

func metadataPath(recordingPath string) string {
	ext := filepath.Ext(recordingPath)
	return recordingPath[:len(recordingPath)-len(ext)] + ".meta.json"
}
