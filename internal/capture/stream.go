// Package capture acquires the combined media stream for one recording:
// a screen-region video track at a fixed frame rate, plus an optional
// best-effort microphone track.
package capture

import (
	"errors"
	"io"
	"sync"

	"github.com/pion/mediadevices"

	"github.com/koji/shadertoyrec/internal/diaglog"
)

// ErrNoTracksAvailable is returned when acquisition produced an empty stream.
// Zero tracks is a terminal error, not a degraded mode.
var ErrNoTracksAvailable = errors.New("no media tracks available")

// ErrAudioPermissionDenied marks a denied or absent microphone. Non-fatal:
// recording proceeds video-only.
var ErrAudioPermissionDenied = errors.New("audio capture denied")

// Region is the screen rectangle to record, in physical pixels.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Stream is the combined capture unit for one recording. Its tracks are
// exclusively owned by the active capture session and must be released
// exactly once, on every success or failure path.
type Stream struct {
	video mediadevices.Track
	audio mediadevices.Track

	logger      *diaglog.Logger
	releaseOnce sync.Once
}

// HasVideo reports whether a video track was acquired.
func (s *Stream) HasVideo() bool { return s.video != nil }

// HasAudio reports whether an audio track was acquired.
func (s *Stream) HasAudio() bool { return s.audio != nil }

// TrackCount returns the number of live tracks in the stream.
func (s *Stream) TrackCount() int {
	n := 0
	if s.video != nil {
		n++
	}
	if s.audio != nil {
		n++
	}
	return n
}

// VideoReader opens an encoded reader on the video track for the given mime
// type (e.g. "video/VP9").
func (s *Stream) VideoReader(mimeType string) (io.ReadCloser, error) {
	if s.video == nil {
		return nil, ErrNoTracksAvailable
	}
	return s.video.NewEncodedIOReader(mimeType)
}

// AudioReader opens an encoded reader on the audio track for the given mime
// type (e.g. "audio/opus").
func (s *Stream) AudioReader(mimeType string) (io.ReadCloser, error) {
	if s.audio == nil {
		return nil, ErrNoTracksAvailable
	}
	return s.audio.NewEncodedIOReader(mimeType)
}

// Release stops every track. Idempotent; the first call wins and later calls
// are no-ops, so every code path can release unconditionally.
func (s *Stream) Release() {
	s.releaseOnce.Do(func() {
		if s.video != nil {
			_ = s.video.Close()
			s.log("video")
		}
		if s.audio != nil {
			_ = s.audio.Close()
			s.log("audio")
		}
	})
}

func (s *Stream) log(kind string) {
	s.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentStreamAcquirer,
		Event:     diaglog.EventTrackReleased,
		Payload:   map[string]interface{}{"kind": kind},
	})
}
