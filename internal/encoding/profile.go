// Package encoding owns the (container, codec) profile table, the runtime
// capability probe, and the chunked WebM muxer used by capture sessions.
package encoding

import (
	"errors"
	"fmt"
)

// ErrNoSupportedFormat is returned when no profile candidate is supported by
// the runtime. No tracks have produced irreversible state at that point, but
// the caller must still release them.
var ErrNoSupportedFormat = errors.New("no supported container/codec profile")

// Container is the outer file format wrapping encoded codec data.
type Container string

const (
	ContainerMP4  Container = "mp4"
	ContainerWebM Container = "webm"
)

// Extension returns the artifact file extension for the container family.
func (c Container) Extension() string {
	if c == ContainerMP4 {
		return ".mp4"
	}
	return ".webm"
}

// Codec identifies one audio or video codec.
type Codec string

const (
	CodecNone Codec = ""
	CodecH264 Codec = "h264"
	CodecVP9  Codec = "vp9"
	CodecVP8  Codec = "vp8"
	CodecAAC  Codec = "aac"
	CodecOpus Codec = "opus"
)

// MimeType returns the WebRTC-style mime type used to select encoded track
// readers. Empty for CodecNone.
func (c Codec) MimeType() string {
	switch c {
	case CodecH264:
		return "video/H264"
	case CodecVP9:
		return "video/VP9"
	case CodecVP8:
		return "video/VP8"
	case CodecAAC:
		return "audio/aac"
	case CodecOpus:
		return "audio/opus"
	}
	return ""
}

// webmCodecID maps a codec to its Matroska codec id.
func webmCodecID(c Codec) string {
	switch c {
	case CodecVP8:
		return "V_VP8"
	case CodecVP9:
		return "V_VP9"
	case CodecOpus:
		return "A_OPUS"
	}
	return ""
}

// Profile is an immutable (container, video codec, audio codec) tuple chosen
// once per session. Never re-selected mid-session.
type Profile struct {
	Container  Container
	VideoCodec Codec
	AudioCodec Codec // CodecNone for bare-container fallbacks
}

func (p Profile) String() string {
	if p.AudioCodec == CodecNone {
		return fmt.Sprintf("%s/%s", p.Container, p.VideoCodec)
	}
	return fmt.Sprintf("%s/%s+%s", p.Container, p.VideoCodec, p.AudioCodec)
}

// Candidates is the fixed, priority-ordered profile table. Selection always
// picks the first candidate the prober reports supported.
var Candidates = []Profile{
	{ContainerMP4, CodecH264, CodecAAC},
	{ContainerWebM, CodecVP9, CodecOpus},
	{ContainerWebM, CodecVP8, CodecOpus},
	{ContainerWebM, CodecVP9, CodecNone},
	{ContainerWebM, CodecVP8, CodecNone},
}

// Prober reports whether the runtime can encode and mux a given profile.
type Prober interface {
	Supported(Profile) bool
}

// Select iterates candidates in order and returns the first supported one.
func Select(candidates []Profile, prober Prober) (Profile, error) {
	for _, p := range candidates {
		if prober.Supported(p) {
			return p, nil
		}
	}
	return Profile{}, ErrNoSupportedFormat
}

// capabilityProber checks profiles against the compiled-in encoder and muxer
// set.
type capabilityProber struct {
	muxers map[Container]bool
	video  map[Codec]bool
	audio  map[Codec]bool
}

// DefaultProber returns the prober for this build: a WebM muxer plus the VP8,
// VP9 and Opus encoders. There is no MP4 muxer or AAC encoder wired, so the
// MP4 candidate is honestly reported unsupported.
func DefaultProber() Prober {
	return &capabilityProber{
		muxers: map[Container]bool{ContainerWebM: true},
		video:  map[Codec]bool{CodecVP8: true, CodecVP9: true},
		audio:  map[Codec]bool{CodecOpus: true},
	}
}

func (cp *capabilityProber) Supported(p Profile) bool {
	if !cp.muxers[p.Container] {
		return false
	}
	if !cp.video[p.VideoCodec] {
		return false
	}
	if p.AudioCodec != CodecNone && !cp.audio[p.AudioCodec] {
		return false
	}
	return true
}
