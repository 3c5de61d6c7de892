package encoding

import (
	"bytes"
	"testing"
)

func newTestWriter(t *testing.T, hasAudio bool) *WebMWriter {
	t.Helper()
	w, err := NewWebMWriter(
		Profile{ContainerWebM, CodecVP8, CodecOpus},
		WriterOptions{Width: 640, Height: 360, FrameRate: 60, HasAudio: hasAudio},
	)
	if err != nil {
		t.Fatalf("NewWebMWriter: %v", err)
	}
	return w
}

func TestWebMWriter_headerThenFrames(t *testing.T) {
	w := newTestWriter(t, false)

	first := w.Cut()
	if len(first) == 0 {
		t.Fatal("expected EBML header bytes after muxer init")
	}
	// EBML magic.
	if !bytes.HasPrefix(first, []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		t.Errorf("first cut does not start with EBML magic: % x", first[:4])
	}

	if err := w.WriteVideo(true, 0, []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a}); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}
	frameBytes := w.Cut()
	if len(frameBytes) == 0 {
		t.Error("expected muxed bytes after a video frame")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWebMWriter_cutIsEmptyWithoutNewData(t *testing.T) {
	w := newTestWriter(t, false)
	_ = w.Cut()
	if b := w.Cut(); b != nil {
		t.Errorf("second cut without writes should be nil, got %d bytes", len(b))
	}
	_ = w.Close()
}

func TestWebMWriter_writeAfterCloseIsIgnored(t *testing.T) {
	w := newTestWriter(t, true)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.WriteVideo(true, 10, []byte{0x10}); err != nil {
		t.Errorf("write after close should be ignored, got %v", err)
	}
	if err := w.WriteAudio(10, []byte{0x01}); err != nil {
		t.Errorf("audio write after close should be ignored, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("double close should be a no-op, got %v", err)
	}
}

func TestWebMWriter_rejectsNonWebMProfile(t *testing.T) {
	_, err := NewWebMWriter(
		Profile{ContainerMP4, CodecH264, CodecAAC},
		WriterOptions{Width: 640, Height: 360},
	)
	if err == nil {
		t.Fatal("expected error for MP4 profile")
	}
}
