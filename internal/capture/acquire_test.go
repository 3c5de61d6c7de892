package capture

import (
	"errors"
	"image"
	"testing"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/video"
)

func frameSource(w, h int) video.Reader {
	return video.ReaderFunc(func() (image.Image, func(), error) {
		return image.NewRGBA(image.Rect(0, 0, w, h)), func() {}, nil
	})
}

// ─── cropTransform ──────────────────────────────────────────────────────────

func TestCropTransform_clipsToRegion(t *testing.T) {
	region := Region{X: 10, Y: 20, Width: 300, Height: 200}
	reader := cropTransform(region)(frameSource(1920, 1080))

	img, release, err := reader.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer release()

	want := image.Rect(10, 20, 310, 220)
	if img.Bounds() != want {
		t.Errorf("cropped bounds = %v, want %v", img.Bounds(), want)
	}
}

func TestCropTransform_regionLargerThanFrame(t *testing.T) {
	region := Region{X: 0, Y: 0, Width: 4000, Height: 4000}
	reader := cropTransform(region)(frameSource(640, 480))

	img, release, err := reader.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer release()

	want := image.Rect(0, 0, 640, 480)
	if img.Bounds() != want {
		t.Errorf("cropped bounds = %v, want %v", img.Bounds(), want)
	}
}

func TestCropTransform_offscreenRegionKeepsFullFrame(t *testing.T) {
	// No intersection with the frame: the full frame passes through.
	region := Region{X: 5000, Y: 5000, Width: 100, Height: 100}
	reader := cropTransform(region)(frameSource(640, 480))

	img, release, err := reader.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer release()

	want := image.Rect(0, 0, 640, 480)
	if img.Bounds() != want {
		t.Errorf("bounds = %v, want full frame %v", img.Bounds(), want)
	}
}

func TestCropTransform_propagatesReadError(t *testing.T) {
	readErr := errors.New("device gone")
	src := video.ReaderFunc(func() (image.Image, func(), error) {
		return nil, func() {}, readErr
	})

	reader := cropTransform(Region{Width: 10, Height: 10})(src)
	if _, _, err := reader.Read(); !errors.Is(err, readErr) {
		t.Errorf("Read error = %v, want %v", err, readErr)
	}
}

// ─── Stream ─────────────────────────────────────────────────────────────────

func TestStream_emptyStream(t *testing.T) {
	s := &Stream{}

	if s.HasVideo() || s.HasAudio() {
		t.Error("empty stream should report no tracks")
	}
	if s.TrackCount() != 0 {
		t.Errorf("TrackCount = %d, want 0", s.TrackCount())
	}

	if _, err := s.VideoReader("video/VP9"); !errors.Is(err, ErrNoTracksAvailable) {
		t.Errorf("VideoReader error = %v, want ErrNoTracksAvailable", err)
	}
	if _, err := s.AudioReader("audio/opus"); !errors.Is(err, ErrNoTracksAvailable) {
		t.Errorf("AudioReader error = %v, want ErrNoTracksAvailable", err)
	}

	// Release on an empty stream must be safe, repeatedly.
	s.Release()
	s.Release()
}

// ─── Acquire ────────────────────────────────────────────────────────────────

// fakeTrack embeds the Track interface so only the methods Acquire and
// Release touch need real implementations.
type fakeTrack struct {
	mediadevices.Track
	closed int
}

func (t *fakeTrack) Close() error {
	t.closed++
	return nil
}

type fakeMediaStream struct {
	mediadevices.MediaStream
	video []mediadevices.Track
	audio []mediadevices.Track
}

func (s *fakeMediaStream) GetVideoTracks() []mediadevices.Track { return s.video }
func (s *fakeMediaStream) GetAudioTracks() []mediadevices.Track { return s.audio }

func testAcquirer(t *testing.T) *Acquirer {
	t.Helper()
	return NewAcquirer(Config{FrameRate: 30, VideoBitRate: 2_500_000, AudioBitRate: 128_000})
}

var testRegion = Region{X: 0, Y: 0, Width: 640, Height: 480}

func TestAcquire_audioDenialFallsBackToVideoOnly(t *testing.T) {
	vt := &fakeTrack{}
	a := testAcquirer(t)
	a.getDisplayMedia = func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
		return &fakeMediaStream{video: []mediadevices.Track{vt}}, nil
	}
	a.getUserMedia = func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
		return nil, errors.New("microphone permission denied")
	}

	stream, err := a.Acquire(testRegion, true)
	if err != nil {
		t.Fatalf("Acquire with denied audio should succeed video-only, got %v", err)
	}
	if !stream.HasVideo() || stream.HasAudio() {
		t.Errorf("HasVideo=%v HasAudio=%v, want video-only", stream.HasVideo(), stream.HasAudio())
	}
	if stream.TrackCount() != 1 {
		t.Errorf("TrackCount = %d, want 1", stream.TrackCount())
	}

	stream.Release()
	if vt.closed != 1 {
		t.Errorf("video track closed %d times, want 1", vt.closed)
	}
}

func TestAcquire_audioGrantedYieldsBothTracks(t *testing.T) {
	vt := &fakeTrack{}
	at := &fakeTrack{}
	a := testAcquirer(t)
	a.getDisplayMedia = func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
		return &fakeMediaStream{video: []mediadevices.Track{vt}}, nil
	}
	a.getUserMedia = func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
		return &fakeMediaStream{audio: []mediadevices.Track{at}}, nil
	}

	stream, err := a.Acquire(testRegion, true)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if stream.TrackCount() != 2 {
		t.Errorf("TrackCount = %d, want 2", stream.TrackCount())
	}
	if !stream.HasAudio() {
		t.Error("granted microphone should yield an audio track")
	}

	stream.Release()
	if vt.closed != 1 || at.closed != 1 {
		t.Errorf("tracks closed %d/%d times, want 1/1", vt.closed, at.closed)
	}
}

func TestAcquire_audioNotWantedSkipsMicrophone(t *testing.T) {
	a := testAcquirer(t)
	a.getDisplayMedia = func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
		return &fakeMediaStream{video: []mediadevices.Track{&fakeTrack{}}}, nil
	}
	a.getUserMedia = func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
		t.Fatal("getUserMedia must not be called when audio is not wanted")
		return nil, nil
	}

	stream, err := a.Acquire(testRegion, false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer stream.Release()
	if stream.HasAudio() {
		t.Error("stream should have no audio track")
	}
}

func TestAcquire_screenCaptureFailure(t *testing.T) {
	a := testAcquirer(t)
	a.getDisplayMedia = func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
		return nil, errors.New("no display found")
	}

	if _, err := a.Acquire(testRegion, true); !errors.Is(err, ErrNoTracksAvailable) {
		t.Errorf("Acquire error = %v, want ErrNoTracksAvailable", err)
	}
}

func TestAcquire_emptyDisplayStream(t *testing.T) {
	a := testAcquirer(t)
	a.getDisplayMedia = func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
		return &fakeMediaStream{}, nil
	}

	if _, err := a.Acquire(testRegion, false); !errors.Is(err, ErrNoTracksAvailable) {
		t.Errorf("Acquire error = %v, want ErrNoTracksAvailable", err)
	}
}
