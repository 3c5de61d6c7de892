// Package session drives one recording: it selects an encoding profile,
// pumps encoded frames through the muxer, accumulates emitted chunks on a
// fixed cadence, and finalizes asynchronously when stopped.
package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/koji/shadertoyrec/internal/capture"
	"github.com/koji/shadertoyrec/internal/diaglog"
	"github.com/koji/shadertoyrec/internal/encoding"
)

var (
	// ErrSessionActive means a second Begin was attempted while a session
	// is still live. At-most-one active session is a cooperative invariant
	// enforced by the Registry.
	ErrSessionActive = errors.New("a capture session is already active")

	// ErrNotRecording is returned by Stop when no recording is in progress.
	// The no-op is reported, not silently swallowed.
	ErrNotRecording = errors.New("no recording in progress")

	// ErrEmptyRecording marks a session that stopped before emitting any
	// data. Non-fatal: no artifact, clean shutdown.
	ErrEmptyRecording = errors.New("recording produced no data")

	// ErrEncoderFault marks an unrecoverable encoder error. The session
	// moves to ERRORED, releases its tracks and produces no artifact.
	ErrEncoderFault = errors.New("encoder fault")
)

// MediaStream is the slice of capture.Stream the session needs. Tracks are
// exclusively owned by the session until Release.
type MediaStream interface {
	HasAudio() bool
	TrackCount() int
	VideoReader(mimeType string) (io.ReadCloser, error)
	AudioReader(mimeType string) (io.ReadCloser, error)
	Release()
}

// ChunkWriter is the muxer interface the session feeds. Cut drains the bytes
// muxed since the previous cut.
type ChunkWriter interface {
	WriteVideo(keyframe bool, timestampMs int64, data []byte) error
	WriteAudio(timestampMs int64, data []byte) error
	Cut() []byte
	Close() error
}

// Config holds per-session parameters. Zero values fall back to the fixed
// recording defaults.
type Config struct {
	Width         int
	Height        int
	FrameRate     int
	ChunkInterval time.Duration

	// Prober and NewWriter are swappable for tests; nil selects the
	// compiled-in capability prober and the WebM muxer.
	Prober    encoding.Prober
	NewWriter func(encoding.Profile, encoding.WriterOptions) (ChunkWriter, error)

	Logger *diaglog.Logger
}

// Result is delivered exactly once on the session's Done channel after
// finalization. Err is nil for a normal recording, ErrEmptyRecording for a
// dataless one, and wraps ErrEncoderFault or the close error otherwise.
type Result struct {
	SessionID string
	Profile   encoding.Profile
	Chunks    [][]byte // emission order; nil unless Err == nil
	StartedAt time.Time
	StoppedAt time.Time
	Err       error
}

// Session is one recording in flight.
type Session struct {
	id      string
	stream  MediaStream
	profile encoding.Profile
	writer  ChunkWriter
	cfg     Config
	logger  *diaglog.Logger

	phase     atomic.Int32
	chunks    [][]byte
	sawMedia  atomic.Bool
	startedAt time.Time

	readers  []io.ReadCloser
	readerWG sync.WaitGroup
	stopCh   chan struct{}
	faultCh  chan error
	done     chan Result
}

// Begin selects a profile for the stream and starts recording. On any error
// the stream's tracks are released before returning; no track is ever left
// running on an error path.
func Begin(stream MediaStream, cfg Config) (*Session, error) {
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = 100 * time.Millisecond
	}
	if cfg.Prober == nil {
		cfg.Prober = encoding.DefaultProber()
	}
	if cfg.NewWriter == nil {
		cfg.NewWriter = func(p encoding.Profile, o encoding.WriterOptions) (ChunkWriter, error) {
			return encoding.NewWebMWriter(p, o)
		}
	}

	s := &Session{
		id:      "rec-" + uuid.NewString(),
		stream:  stream,
		cfg:     cfg,
		logger:  cfg.Logger,
		stopCh:  make(chan struct{}),
		faultCh: make(chan error, 1),
		done:    make(chan Result, 1),
	}

	if stream.TrackCount() == 0 {
		stream.Release()
		return nil, capture.ErrNoTracksAvailable
	}

	s.phase.Store(int32(PhaseSelectingProfile))
	profile, err := encoding.Select(encoding.Candidates, cfg.Prober)
	if err != nil {
		stream.Release()
		s.phase.Store(int32(PhaseErrored))
		return nil, err
	}
	s.profile = profile
	s.log(diaglog.LogEntry{
		Event:   diaglog.EventProfileSelected,
		Payload: map[string]interface{}{"profile": profile.String()},
	})

	withAudio := stream.HasAudio() && profile.AudioCodec != encoding.CodecNone
	writer, err := cfg.NewWriter(profile, encoding.WriterOptions{
		Width:     cfg.Width,
		Height:    cfg.Height,
		FrameRate: cfg.FrameRate,
		HasAudio:  withAudio,
	})
	if err != nil {
		stream.Release()
		s.phase.Store(int32(PhaseErrored))
		return nil, fmt.Errorf("%w: %v", ErrEncoderFault, err)
	}
	s.writer = writer

	videoReader, err := stream.VideoReader(profile.VideoCodec.MimeType())
	if err != nil {
		stream.Release()
		s.phase.Store(int32(PhaseErrored))
		return nil, fmt.Errorf("%w: %v", ErrEncoderFault, err)
	}
	s.readers = append(s.readers, videoReader)

	var audioReader io.ReadCloser
	if withAudio {
		audioReader, err = stream.AudioReader(profile.AudioCodec.MimeType())
		if err != nil {
			_ = videoReader.Close()
			stream.Release()
			s.phase.Store(int32(PhaseErrored))
			return nil, fmt.Errorf("%w: %v", ErrEncoderFault, err)
		}
		s.readers = append(s.readers, audioReader)
	}

	s.startedAt = time.Now()
	s.phase.Store(int32(PhaseRecording))
	s.log(diaglog.LogEntry{
		Event:   diaglog.EventRecordingStart,
		Payload: map[string]interface{}{"profile": profile.String(), "audio": withAudio},
	})

	s.readerWG.Add(1)
	go s.feedVideo(videoReader)
	if audioReader != nil {
		s.readerWG.Add(1)
		go s.feedAudio(audioReader)
	}
	go s.pump()

	return s, nil
}

// ID returns the session identifier used in diagnostics and metadata.
func (s *Session) ID() string { return s.id }

// Profile returns the profile selected for this session.
func (s *Session) Profile() encoding.Profile { return s.profile }

// StartedAt returns when recording began.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Phase returns the session's current lifecycle phase.
func (s *Session) Phase() Phase { return Phase(s.phase.Load()) }

// Done returns the channel on which the finalization Result is delivered
// exactly once. No chunk is appended after the result is sent.
func (s *Session) Done() <-chan Result { return s.done }

// Stop requests termination. It returns immediately; finalization completes
// asynchronously and is observed via Done. Stopping a session that is not
// recording is a reported no-op.
func (s *Session) Stop() error {
	if s.phase.CompareAndSwap(int32(PhaseRecording), int32(PhaseStopping)) {
		close(s.stopCh)
		return nil
	}
	s.log(diaglog.LogEntry{
		Event:   diaglog.EventStopRejected,
		Payload: map[string]interface{}{"phase": s.Phase().String()},
	})
	return ErrNotRecording
}

func (s *Session) terminal() bool {
	p := s.Phase()
	return p == PhaseFinalized || p == PhaseErrored
}

// fault reports an asynchronous encoder error. First fault wins.
func (s *Session) fault(err error) {
	select {
	case s.faultCh <- err:
	default:
	}
}

// feedVideo moves encoded video frames from the track into the muxer. Each
// Read yields one frame. The first frame is always flagged as a key frame so
// the stream starts decodable.
func (s *Session) feedVideo(r io.ReadCloser) {
	defer s.readerWG.Done()
	buf := make([]byte, 1024*1024)
	first := true
	for {
		n, err := r.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || s.Phase() != PhaseRecording {
				return
			}
			s.fault(fmt.Errorf("video read: %w", err))
			return
		}
		if n == 0 {
			continue
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])

		keyframe := first || encoding.IsKeyFrame(s.profile.VideoCodec, frame)
		first = false
		s.sawMedia.Store(true)

		ts := time.Since(s.startedAt).Milliseconds()
		if werr := s.writer.WriteVideo(keyframe, ts, frame); werr != nil {
			if s.Phase() == PhaseRecording {
				s.fault(fmt.Errorf("video mux: %w", werr))
			}
			return
		}
	}
}

// feedAudio moves encoded audio packets from the track into the muxer.
func (s *Session) feedAudio(r io.ReadCloser) {
	defer s.readerWG.Done()
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || s.Phase() != PhaseRecording {
				return
			}
			s.fault(fmt.Errorf("audio read: %w", err))
			return
		}
		if n == 0 {
			continue
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		s.sawMedia.Store(true)

		ts := time.Since(s.startedAt).Milliseconds()
		if werr := s.writer.WriteAudio(ts, packet); werr != nil {
			if s.Phase() == PhaseRecording {
				s.fault(fmt.Errorf("audio mux: %w", werr))
			}
			return
		}
	}
}

// pump owns the chunk sequence. Cuts, faults and finalization are serialized
// here, which preserves emission order and guarantees that no chunk is
// appended after the completion result is delivered.
func (s *Session) pump() {
	ticker := time.NewTicker(s.cfg.ChunkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cut()
		case err := <-s.faultCh:
			s.finalize(err)
			return
		case <-s.stopCh:
			s.finalize(nil)
			return
		}
	}
}

// cut drains muxed bytes into the chunk sequence. Bytes are held back until
// the first media frame arrived so a dataless session yields zero chunks
// instead of a bare container header.
func (s *Session) cut() {
	if !s.sawMedia.Load() {
		return
	}
	b := s.writer.Cut()
	if len(b) == 0 {
		return
	}
	s.chunks = append(s.chunks, b)
	s.log(diaglog.LogEntry{
		Event:   diaglog.EventChunkEmitted,
		Payload: map[string]interface{}{"bytes": len(b), "seq": len(s.chunks)},
	})
}

// finalize closes the readers and muxer, releases the tracks, and delivers
// the result. Track release is unconditional, on every branch.
func (s *Session) finalize(faultErr error) {
	s.phase.Store(int32(PhaseStopping))

	for _, r := range s.readers {
		_ = r.Close()
	}
	s.readerWG.Wait()

	if cerr := s.writer.Close(); cerr != nil && faultErr == nil {
		faultErr = fmt.Errorf("%w: %v", ErrEncoderFault, cerr)
	}
	if faultErr == nil {
		s.cut() // trailing bytes flushed by Close
	}

	s.stream.Release()

	res := Result{
		SessionID: s.id,
		Profile:   s.profile,
		StartedAt: s.startedAt,
		StoppedAt: time.Now(),
	}

	switch {
	case faultErr != nil:
		s.phase.Store(int32(PhaseErrored))
		if !errors.Is(faultErr, ErrEncoderFault) {
			faultErr = fmt.Errorf("%w: %v", ErrEncoderFault, faultErr)
		}
		res.Err = faultErr
		s.log(diaglog.LogEntry{
			Event:   diaglog.EventEncoderFault,
			Payload: map[string]interface{}{"error": faultErr.Error()},
		})
	case len(s.chunks) == 0:
		s.phase.Store(int32(PhaseFinalized))
		res.Err = ErrEmptyRecording
		s.log(diaglog.LogEntry{Event: diaglog.EventEmptyRecording})
	default:
		s.phase.Store(int32(PhaseFinalized))
		res.Chunks = s.chunks
		s.log(diaglog.LogEntry{
			Event:   diaglog.EventRecordingStop,
			Payload: map[string]interface{}{"chunks": len(s.chunks)},
		})
	}

	s.done <- res
}

func (s *Session) log(entry diaglog.LogEntry) {
	entry.Component = diaglog.ComponentCaptureSession
	entry.SessionID = s.id
	s.logger.Log(entry)
}
