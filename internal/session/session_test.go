package session

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koji/shadertoyrec/internal/capture"
	"github.com/koji/shadertoyrec/internal/encoding"
)

// frameReader delivers its queued frames one per Read, then blocks until
// closed (or returns err, when set), mimicking an encoded track reader.
type frameReader struct {
	frames    [][]byte
	err       error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFrameReader(frames [][]byte, err error) *frameReader {
	return &frameReader{frames: frames, err: err, closed: make(chan struct{})}
}

func (r *frameReader) Read(p []byte) (int, error) {
	if len(r.frames) > 0 {
		f := r.frames[0]
		r.frames = r.frames[1:]
		return copy(p, f), nil
	}
	if r.err != nil {
		return 0, r.err
	}
	<-r.closed
	return 0, io.EOF
}

func (r *frameReader) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

type fakeStream struct {
	audio    bool
	tracks   int
	video    *frameReader
	releases atomic.Int32
}

func (s *fakeStream) HasAudio() bool  { return s.audio }
func (s *fakeStream) TrackCount() int { return s.tracks }
func (s *fakeStream) VideoReader(string) (io.ReadCloser, error) {
	return s.video, nil
}
func (s *fakeStream) AudioReader(string) (io.ReadCloser, error) {
	return newFrameReader(nil, nil), nil
}
func (s *fakeStream) Release() { s.releases.Add(1) }

// fakeWriter records each muxed frame as one byte of pending output so tests
// can check chunk content and ordering.
type fakeWriter struct {
	mu       sync.Mutex
	pending  []byte
	seq      byte
	closeErr error
	writeErr error
}

func (w *fakeWriter) WriteVideo(_ bool, _ int64, _ []byte) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.pending = append(w.pending, w.seq)
	return nil
}

func (w *fakeWriter) WriteAudio(_ int64, _ []byte) error { return nil }

func (w *fakeWriter) Cut() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return nil
	}
	out := w.pending
	w.pending = nil
	return out
}

func (w *fakeWriter) Close() error { return w.closeErr }

func testConfig(w ChunkWriter) Config {
	return Config{
		Width:         640,
		Height:        360,
		FrameRate:     60,
		ChunkInterval: 5 * time.Millisecond,
		NewWriter: func(encoding.Profile, encoding.WriterOptions) (ChunkWriter, error) {
			return w, nil
		},
	}
}

func waitDone(t *testing.T, s *Session) Result {
	t.Helper()
	select {
	case res := <-s.Done():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finalize in time")
		return Result{}
	}
}

func TestSession_chunksArriveInOrder(t *testing.T) {
	frames := [][]byte{{0x10}, {0x11}, {0x10}, {0x11}, {0x10}}
	stream := &fakeStream{tracks: 1, video: newFrameReader(frames, nil)}
	w := &fakeWriter{}

	s, err := Begin(stream, testConfig(w))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if s.Phase() != PhaseRecording {
		t.Fatalf("phase = %v, want recording", s.Phase())
	}

	time.Sleep(30 * time.Millisecond) // let a few cut intervals elapse
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	res := waitDone(t, s)
	if res.Err != nil {
		t.Fatalf("result error: %v", res.Err)
	}

	var joined []byte
	for _, c := range res.Chunks {
		if len(c) == 0 {
			t.Error("emitted chunk is empty")
		}
		joined = append(joined, c...)
	}
	// Concatenating the chunks in emission order reproduces the muxed byte
	// sequence exactly.
	if !bytes.Equal(joined, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("joined chunks = %v, want sequential 1..5", joined)
	}
	if got := stream.releases.Load(); got != 1 {
		t.Errorf("stream released %d times, want exactly 1", got)
	}
	if s.Phase() != PhaseFinalized {
		t.Errorf("phase = %v, want finalized", s.Phase())
	}
}

func TestSession_emptyRecording(t *testing.T) {
	stream := &fakeStream{tracks: 1, video: newFrameReader(nil, nil)}
	s, err := Begin(stream, testConfig(&fakeWriter{}))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	res := waitDone(t, s)
	if !errors.Is(res.Err, ErrEmptyRecording) {
		t.Errorf("result error = %v, want ErrEmptyRecording", res.Err)
	}
	if len(res.Chunks) != 0 {
		t.Errorf("empty recording yielded %d chunks", len(res.Chunks))
	}
	if got := stream.releases.Load(); got != 1 {
		t.Errorf("stream released %d times, want exactly 1", got)
	}
	if s.Phase() != PhaseFinalized {
		t.Errorf("phase = %v, want finalized", s.Phase())
	}
}

func TestSession_stopWhenNotRecording(t *testing.T) {
	stream := &fakeStream{tracks: 1, video: newFrameReader(nil, nil)}
	s, err := Begin(stream, testConfig(&fakeWriter{}))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := s.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("second Stop = %v, want ErrNotRecording", err)
	}
	waitDone(t, s)
	if err := s.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop after finalize = %v, want ErrNotRecording", err)
	}
}

func TestSession_encoderFault(t *testing.T) {
	readErr := errors.New("track vanished")
	stream := &fakeStream{tracks: 1, video: newFrameReader(nil, readErr)}
	s, err := Begin(stream, testConfig(&fakeWriter{}))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	res := waitDone(t, s)
	if !errors.Is(res.Err, ErrEncoderFault) {
		t.Errorf("result error = %v, want ErrEncoderFault", res.Err)
	}
	if len(res.Chunks) != 0 {
		t.Errorf("faulted session yielded %d chunks, want none", len(res.Chunks))
	}
	if got := stream.releases.Load(); got != 1 {
		t.Errorf("stream released %d times, want exactly 1", got)
	}
	if s.Phase() != PhaseErrored {
		t.Errorf("phase = %v, want errored", s.Phase())
	}
}

func TestSession_muxFault(t *testing.T) {
	stream := &fakeStream{tracks: 1, video: newFrameReader([][]byte{{0x10}}, nil)}
	w := &fakeWriter{writeErr: errors.New("mux blew up")}
	s, err := Begin(stream, testConfig(w))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	res := waitDone(t, s)
	if !errors.Is(res.Err, ErrEncoderFault) {
		t.Errorf("result error = %v, want ErrEncoderFault", res.Err)
	}
	if s.Phase() != PhaseErrored {
		t.Errorf("phase = %v, want errored", s.Phase())
	}
}

func TestSession_zeroTracksRejected(t *testing.T) {
	stream := &fakeStream{tracks: 0}
	_, err := Begin(stream, testConfig(&fakeWriter{}))
	if !errors.Is(err, capture.ErrNoTracksAvailable) {
		t.Errorf("Begin = %v, want ErrNoTracksAvailable", err)
	}
	if got := stream.releases.Load(); got != 1 {
		t.Errorf("stream released %d times, want exactly 1", got)
	}
}

func TestSession_noSupportedProfile(t *testing.T) {
	stream := &fakeStream{tracks: 1, video: newFrameReader(nil, nil)}
	cfg := testConfig(&fakeWriter{})
	cfg.Prober = rejectAllProber{}
	_, err := Begin(stream, cfg)
	if !errors.Is(err, encoding.ErrNoSupportedFormat) {
		t.Errorf("Begin = %v, want ErrNoSupportedFormat", err)
	}
	if got := stream.releases.Load(); got != 1 {
		t.Errorf("stream released %d times, want exactly 1", got)
	}
}

type rejectAllProber struct{}

func (rejectAllProber) Supported(encoding.Profile) bool { return false }

func TestRegistry_singleActiveSession(t *testing.T) {
	reg := NewRegistry()
	stream := &fakeStream{tracks: 1, video: newFrameReader(nil, nil)}
	s, err := reg.Begin(stream, testConfig(&fakeWriter{}))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	second := &fakeStream{tracks: 1, video: newFrameReader(nil, nil)}
	if _, err := reg.Begin(second, testConfig(&fakeWriter{})); !errors.Is(err, ErrSessionActive) {
		t.Errorf("concurrent Begin = %v, want ErrSessionActive", err)
	}

	if err := reg.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitDone(t, s)

	if reg.Active() != nil {
		t.Error("finalized session still reported active")
	}
	if err := reg.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop with no session = %v, want ErrNotRecording", err)
	}

	third := &fakeStream{tracks: 1, video: newFrameReader(nil, nil)}
	s3, err := reg.Begin(third, testConfig(&fakeWriter{}))
	if err != nil {
		t.Fatalf("Begin after finalize: %v", err)
	}
	_ = s3.Stop()
	waitDone(t, s3)
}
