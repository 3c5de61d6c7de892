package encoding

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/at-wat/ebml-go/webm"
)

// chunkSink is the io.WriteCloser behind the muxer. Bytes accumulate until
// the session cuts them into a chunk on its emission cadence.
type chunkSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *chunkSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *chunkSink) Close() error { return nil }

// cut returns the accumulated bytes and resets the buffer. Returns nil when
// nothing accumulated since the last cut.
func (s *chunkSink) cut() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	s.buf.Reset()
	return out
}

// WriterOptions describe the tracks of a chunked WebM stream.
type WriterOptions struct {
	Width     int
	Height    int
	FrameRate int
	HasAudio  bool
	// Audio format; fixed by the opus encoder configuration.
	SampleRate int
	Channels   int
}

// WebMWriter muxes encoded frames into a streaming (unknown-length) WebM
// segment and exposes the muxed bytes as cuttable chunks. Safe for
// concurrent use by one video and one audio feeder.
type WebMWriter struct {
	mu    sync.Mutex
	sink  *chunkSink
	video webm.BlockWriteCloser
	audio webm.BlockWriteCloser
	done  bool
}

// NewWebMWriter builds the muxer for the given profile. Only WebM-family
// profiles are muxable in this build; the prober guarantees callers never
// reach here with anything else.
func NewWebMWriter(profile Profile, opts WriterOptions) (*WebMWriter, error) {
	if profile.Container != ContainerWebM {
		return nil, fmt.Errorf("no muxer for container %q", profile.Container)
	}
	videoCodecID := webmCodecID(profile.VideoCodec)
	if videoCodecID == "" {
		return nil, fmt.Errorf("no webm codec id for %q", profile.VideoCodec)
	}

	if opts.SampleRate == 0 {
		opts.SampleRate = 48000
	}
	if opts.Channels == 0 {
		opts.Channels = 2
	}

	var frameDuration uint64 = 16666666 // ns, 60 fps
	if opts.FrameRate > 0 {
		frameDuration = uint64(1e9 / opts.FrameRate)
	}

	tracks := []webm.TrackEntry{
		{
			Name:            "Video",
			TrackNumber:     1,
			TrackUID:        1,
			CodecID:         videoCodecID,
			TrackType:       1,
			DefaultDuration: frameDuration,
			Video: &webm.Video{
				PixelWidth:  uint64(opts.Width),
				PixelHeight: uint64(opts.Height),
			},
		},
	}

	hasAudio := opts.HasAudio && profile.AudioCodec != CodecNone
	if hasAudio {
		audioCodecID := webmCodecID(profile.AudioCodec)
		if audioCodecID == "" {
			return nil, fmt.Errorf("no webm codec id for %q", profile.AudioCodec)
		}
		tracks = append(tracks, webm.TrackEntry{
			Name:            "Audio",
			TrackNumber:     2,
			TrackUID:        2,
			CodecID:         audioCodecID,
			TrackType:       2,
			DefaultDuration: 20000000, // one opus packet
			Audio: &webm.Audio{
				SamplingFrequency: float64(opts.SampleRate),
				Channels:          uint64(opts.Channels),
			},
		})
	}

	sink := &chunkSink{}
	writers, err := webm.NewSimpleBlockWriter(sink, tracks)
	if err != nil {
		return nil, fmt.Errorf("webm muxer init: %w", err)
	}

	w := &WebMWriter{sink: sink, video: writers[0]}
	if hasAudio {
		w.audio = writers[1]
	}
	return w, nil
}

// WriteVideo muxes one encoded video frame. timestampMs is relative to the
// start of the recording.
func (w *WebMWriter) WriteVideo(keyframe bool, timestampMs int64, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	_, err := w.video.Write(keyframe, timestampMs, data)
	return err
}

// WriteAudio muxes one encoded audio packet. No-op when the stream was built
// without an audio track.
func (w *WebMWriter) WriteAudio(timestampMs int64, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done || w.audio == nil {
		return nil
	}
	// Opus packets are all independently decodable; every block is a keyframe.
	_, err := w.audio.Write(true, timestampMs, data)
	return err
}

// Cut drains the muxed bytes accumulated since the previous cut.
func (w *WebMWriter) Cut() []byte {
	return w.sink.cut()
}

// Close flushes the final cluster into the sink. Further writes are ignored.
// The caller must Cut once more after Close to collect the trailing bytes.
func (w *WebMWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	w.done = true
	var firstErr error
	if err := w.video.Close(); err != nil {
		firstErr = err
	}
	if w.audio != nil {
		if err := w.audio.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
