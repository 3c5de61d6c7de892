// Package artifact assembles finalized chunk sequences into a single
// recording file and names it per the fixed filename contract.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/koji/shadertoyrec/internal/encoding"
)

const filenamePrefix = "shadertoy-recording_"

// timestampLayout renders the stop time as YYYY-MM-DD_HH-MM-SS in local time.
const timestampLayout = "2006-01-02_15-04-05"

// Filename returns the artifact name for a recording stopped at ts:
// shadertoy-recording_<YYYY-MM-DD_HH-MM-SS>.<ext>. The extension always
// matches the container the bytes were actually muxed into.
func Filename(ts time.Time, container encoding.Container) string {
	return filenamePrefix + ts.Format(timestampLayout) + container.Extension()
}

// Assemble concatenates the emitted chunks, in order, into the final artifact
// bytes. Chunks are raw byte deltas from the muxer, so plain concatenation
// reproduces the stream exactly.
func Assemble(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Save writes the artifact bytes into dir under the contract filename and
// returns the final path. An existing file with the same name is never
// overwritten; a numeric suffix is appended instead.
func Save(dir string, ts time.Time, container encoding.Container, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := uniquePath(dir, Filename(ts, container))

	tmpFile, err := os.CreateTemp(dir, ".recording-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create artifact temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return "", fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("close artifact temp: %w", err)
	}
	success = true

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename artifact: %w", err)
	}
	return path, nil
}

// uniquePath appends _2, _3, ... before the extension until the name is free.
func uniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for i := 2; ; i++ {
		try := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(try); os.IsNotExist(err) {
			return try
		}
	}
}
