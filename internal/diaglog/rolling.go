package diaglog

import (
	"os"
	"sync"
)

// rollingWriter backs the diagnostic log at /tmp/shadertoyrec-debug.log (or
// SHADERTOYREC_LOG_PATH). The log is opt-in via SHADERTOYREC_DEBUG and read
// back whole by Export, so instead of rotating to sidecar files it starts over
// in place: when the next write would push the file past maxSize, the file is
// truncated to zero and the entry that overflowed is written fresh.
type rollingWriter struct {
	path    string
	maxSize int64

	mu   sync.Mutex
	f    *os.File
	size int64
}

func newRollingWriter(path string, maxSize int64) (*rollingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &rollingWriter{path: path, maxSize: maxSize, f: f, size: info.Size()}, nil
}

// Write appends one JSON line, starting the file over first if it would
// exceed maxSize. Every write is synced; the daemon may be killed mid-session
// and the log has to survive for a later --export-diag.
func (rw *rollingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.size+int64(len(p)) > rw.maxSize {
		if err := rw.startOver(); err != nil {
			return 0, err
		}
	}

	n, err := rw.f.Write(p)
	if err != nil {
		return n, err
	}
	rw.size += int64(n)
	_ = rw.f.Sync()
	return n, nil
}

// startOver empties the file in place. Callers hold rw.mu.
func (rw *rollingWriter) startOver() error {
	if err := rw.f.Truncate(0); err != nil {
		return err
	}
	if _, err := rw.f.Seek(0, 0); err != nil {
		return err
	}
	rw.size = 0
	return nil
}

func (rw *rollingWriter) close() error {
	_ = rw.f.Sync()
	return rw.f.Close()
}
