package encoding

import (
	"errors"
	"testing"
)

// fakeProber marks an explicit set of profiles as supported.
type fakeProber struct {
	supported map[Profile]bool
}

func (f *fakeProber) Supported(p Profile) bool { return f.supported[p] }

func TestSelect_firstSupportedWins(t *testing.T) {
	a := Profile{ContainerMP4, CodecH264, CodecAAC}
	b := Profile{ContainerWebM, CodecVP9, CodecOpus}
	c := Profile{ContainerWebM, CodecVP8, CodecOpus}

	prober := &fakeProber{supported: map[Profile]bool{b: true, c: true}}

	got, err := Select([]Profile{a, b, c}, prober)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != b {
		t.Errorf("Select = %v, want %v (first supported)", got, b)
	}
}

func TestSelect_noneSupported(t *testing.T) {
	prober := &fakeProber{supported: map[Profile]bool{}}

	_, err := Select(Candidates, prober)
	if !errors.Is(err, ErrNoSupportedFormat) {
		t.Fatalf("want ErrNoSupportedFormat, got %v", err)
	}
}

func TestSelect_neverReselectsOrder(t *testing.T) {
	// The full candidate table keeps its documented ranking.
	want := []Profile{
		{ContainerMP4, CodecH264, CodecAAC},
		{ContainerWebM, CodecVP9, CodecOpus},
		{ContainerWebM, CodecVP8, CodecOpus},
		{ContainerWebM, CodecVP9, CodecNone},
		{ContainerWebM, CodecVP8, CodecNone},
	}
	if len(Candidates) != len(want) {
		t.Fatalf("candidate table has %d entries, want %d", len(Candidates), len(want))
	}
	for i, p := range want {
		if Candidates[i] != p {
			t.Errorf("Candidates[%d] = %v, want %v", i, Candidates[i], p)
		}
	}
}

func TestDefaultProber_picksVP9Opus(t *testing.T) {
	got, err := Select(Candidates, DefaultProber())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := Profile{ContainerWebM, CodecVP9, CodecOpus}
	if got != want {
		t.Errorf("default selection = %v, want %v", got, want)
	}
}

func TestDefaultProber_mp4Unsupported(t *testing.T) {
	if DefaultProber().Supported(Profile{ContainerMP4, CodecH264, CodecAAC}) {
		t.Error("MP4/h264+aac must be reported unsupported: no MP4 muxer or AAC encoder is wired")
	}
}

func TestContainerExtension(t *testing.T) {
	if got := ContainerMP4.Extension(); got != ".mp4" {
		t.Errorf("mp4 extension = %q", got)
	}
	if got := ContainerWebM.Extension(); got != ".webm" {
		t.Errorf("webm extension = %q", got)
	}
}

func TestProfileString(t *testing.T) {
	p := Profile{ContainerWebM, CodecVP9, CodecOpus}
	if p.String() != "webm/vp9+opus" {
		t.Errorf("String = %q", p.String())
	}
	bare := Profile{ContainerWebM, CodecVP8, CodecNone}
	if bare.String() != "webm/vp8" {
		t.Errorf("String = %q", bare.String())
	}
}
