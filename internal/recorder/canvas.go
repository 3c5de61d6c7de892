package recorder

import (
	"sync"
	"time"

	"github.com/koji/shadertoyrec/internal/artifact"
	"github.com/koji/shadertoyrec/internal/capture"
	"github.com/koji/shadertoyrec/internal/config"
	"github.com/koji/shadertoyrec/internal/detector"
	"github.com/koji/shadertoyrec/internal/devtools"
	"github.com/koji/shadertoyrec/internal/diaglog"
	"github.com/koji/shadertoyrec/internal/session"
)

// CanvasRecorder records a page's render surface via screen capture. Surface
// geometry is resolved once at start; navigation after that invalidates the
// recording rather than chasing the element.
type CanvasRecorder struct {
	cfg      *config.RecorderConfig
	registry *session.Registry
	acquirer *capture.Acquirer
	logger   *diaglog.Logger
	version  string

	mu          sync.Mutex
	onCompleted func(RecordingResult)
	last        *RecordingResult
	lastPath    string
	pageURL     string
	pageTitle   string

	// Seams for tests.
	resolveSurface func(socketURL, surfaceID string) (devtools.Rect, error)
	acquire        func(region capture.Region, wantAudio bool) (session.MediaStream, error)
}

// NewCanvasRecorder wires a recorder against the given configuration.
func NewCanvasRecorder(cfg *config.RecorderConfig, version string) *CanvasRecorder {
	r := &CanvasRecorder{
		cfg:      cfg,
		registry: session.NewRegistry(),
		acquirer: capture.NewAcquirer(capture.Config{
			FrameRate:    cfg.FrameRate,
			VideoBitRate: cfg.VideoBitRate,
			AudioBitRate: cfg.AudioBitRate,
		}),
		version: version,
	}
	r.resolveSurface = r.resolveViaDevTools
	r.acquire = func(region capture.Region, wantAudio bool) (session.MediaStream, error) {
		return r.acquirer.Acquire(region, wantAudio)
	}
	return r
}

// SetLogger injects a structured diagnostic logger.
func (r *CanvasRecorder) SetLogger(l *diaglog.Logger) {
	r.logger = l
	r.acquirer.SetLogger(l)
}

// OnCompleted registers the callback invoked once per recording after
// finalization, for both successful and failed outcomes.
func (r *CanvasRecorder) OnCompleted(fn func(RecordingResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCompleted = fn
}

// Start resolves the detected page's render surface, acquires tracks and
// begins a capture session. Any failure leaves no tracks running.
func (r *CanvasRecorder) Start(det detector.DetectionState) error {
	rect, err := r.resolveSurface(det.SocketURL, det.SurfaceID)
	if err != nil {
		return err
	}

	stream, err := r.acquire(capture.Region{
		X:      rect.X,
		Y:      rect.Y,
		Width:  rect.Width,
		Height: rect.Height,
	}, r.cfg.CaptureAudio)
	if err != nil {
		return err
	}

	sess, err := r.registry.Begin(stream, session.Config{
		Width:         rect.Width,
		Height:        rect.Height,
		FrameRate:     r.cfg.FrameRate,
		ChunkInterval: time.Duration(r.cfg.ChunkIntervalMs) * time.Millisecond,
		Logger:        r.logger,
	})
	if err != nil {
		// Release is idempotent, so this is safe even when the session
		// already released on its own failure path.
		stream.Release()
		return err
	}

	r.mu.Lock()
	r.pageURL = det.TargetURL
	r.pageTitle = det.TargetTitle
	r.mu.Unlock()

	go r.await(sess)
	return nil
}

// Stop requests termination of the active session. Completion is observed via
// the OnCompleted callback, not here.
func (r *CanvasRecorder) Stop(reason string) error {
	if err := r.registry.Stop(); err != nil {
		return err
	}
	r.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentCore,
		Event:     diaglog.EventRecordingStop,
		Reason:    reason,
	})
	return nil
}

// GetState snapshots the recorder for the status file.
func (r *CanvasRecorder) GetState() State {
	st := State{}
	if s := r.registry.Active(); s != nil {
		st.Recording = true
		st.StartTime = s.StartedAt()
	}
	r.mu.Lock()
	st.OutputPath = r.lastPath
	r.mu.Unlock()
	return st
}

// LastResult returns the most recent completed recording, or nil.
func (r *CanvasRecorder) LastResult() *RecordingResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// await blocks on session finalization, assembles and saves the artifact, and
// fires the completion callback exactly once.
func (r *CanvasRecorder) await(sess *session.Session) {
	res := <-sess.Done()

	out := RecordingResult{
		SessionID:  res.SessionID,
		Profile:    res.Profile.String(),
		StartedAt:  res.StartedAt,
		StoppedAt:  res.StoppedAt,
		Duration:   res.StoppedAt.Sub(res.StartedAt),
		ChunkCount: len(res.Chunks),
		Err:        res.Err,
	}

	if res.Err == nil {
		data := artifact.Assemble(res.Chunks)
		path, err := artifact.Save(r.cfg.OutputDir, res.StoppedAt, res.Profile.Container, data)
		if err != nil {
			out.Err = err
		} else {
			out.OutputPath = path
			r.writeSidecar(path, out)
			r.logger.Log(diaglog.LogEntry{
				Component: diaglog.ComponentCaptureSession,
				Event:     diaglog.EventArtifactSaved,
				SessionID: res.SessionID,
				Payload:   map[string]interface{}{"path": path, "bytes": len(data)},
			})
		}
	}

	r.mu.Lock()
	r.last = &out
	if out.OutputPath != "" {
		r.lastPath = out.OutputPath
	}
	cb := r.onCompleted
	r.mu.Unlock()

	if cb != nil {
		cb(out)
	}
}

func (r *CanvasRecorder) writeSidecar(path string, out RecordingResult) {
	r.mu.Lock()
	pageURL, pageTitle := r.pageURL, r.pageTitle
	r.mu.Unlock()
	_ = artifact.WriteMetadata(path, &artifact.Metadata{
		Version:    r.version,
		SessionID:  out.SessionID,
		StartedAt:  out.StartedAt,
		StoppedAt:  out.StoppedAt,
		Duration:   out.Duration.Round(time.Millisecond).String(),
		DurationMs: out.Duration.Milliseconds(),
		PageURL:    pageURL,
		PageTitle:  pageTitle,
		Profile:    out.Profile,
		ChunkCount: out.ChunkCount,
		OutputFile: path,
	})
}

// resolveViaDevTools performs a one-shot resolve: connect, evaluate, hang up.
// The session owns no browser connection while recording.
func (r *CanvasRecorder) resolveViaDevTools(socketURL, surfaceID string) (devtools.Rect, error) {
	client := devtools.NewClient(socketURL)
	client.SetLogger(r.logger)
	if err := client.Connect(); err != nil {
		return devtools.Rect{}, err
	}
	defer client.Disconnect()
	return client.ResolveSurface(surfaceID)
}
