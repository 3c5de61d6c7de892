package encoding

// IsKeyFrame inspects an encoded video frame's header bits and reports
// whether it is an intra (key) frame. The WebM muxer needs the flag so
// players can seek and begin decode at cluster boundaries.
func IsKeyFrame(codec Codec, frame []byte) bool {
	if len(frame) == 0 {
		return false
	}
	switch codec {
	case CodecVP8:
		// VP8 frame tag: lowest bit of the first byte is the frame type,
		// 0 = key frame.
		return frame[0]&0x01 == 0
	case CodecVP9:
		return vp9KeyFrame(frame[0])
	}
	return false
}

// vp9KeyFrame parses the leading bits of a VP9 uncompressed header.
// Layout (MSB first): frame_marker(2)=10, profile_low(1), profile_high(1),
// [reserved(1) when profile==3], show_existing_frame(1), frame_type(1).
func vp9KeyFrame(b0 byte) bool {
	if (b0>>6)&0x03 != 0x02 {
		return false
	}
	profile := ((b0>>4)&0x01)<<1 | (b0 >> 5 & 0x01)
	pos := 3
	if profile == 3 {
		pos = 2
	}
	showExisting := (b0 >> uint(pos)) & 0x01
	if showExisting == 1 {
		return false
	}
	pos--
	frameType := (b0 >> uint(pos)) & 0x01
	return frameType == 0
}
