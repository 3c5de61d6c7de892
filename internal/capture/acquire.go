package capture

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	// Register the capture drivers.
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"

	"github.com/koji/shadertoyrec/internal/diaglog"
)

// Config holds the fixed encoding targets for acquisition.
type Config struct {
	FrameRate    int // frames/second for the video track
	VideoBitRate int // bits/second
	AudioBitRate int // bits/second, applied when an audio track is acquired
}

// Acquirer derives media tracks from the screen and microphone.
type Acquirer struct {
	cfg    Config
	logger *diaglog.Logger

	// Media entry points, swappable in tests.
	getDisplayMedia func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
	getUserMedia    func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
}

// NewAcquirer creates an acquirer with the given encoding targets.
func NewAcquirer(cfg Config) *Acquirer {
	return &Acquirer{
		cfg:             cfg,
		getDisplayMedia: mediadevices.GetDisplayMedia,
		getUserMedia:    mediadevices.GetUserMedia,
	}
}

// SetLogger injects a structured diagnostic logger.
func (a *Acquirer) SetLogger(l *diaglog.Logger) {
	a.logger = l
}

// Acquire derives a video track for the given screen region and, when
// wantAudio is set, attempts a microphone track. Audio denial is non-fatal;
// the stream degrades to video-only. An empty result releases any
// partially-acquired track and fails with ErrNoTracksAvailable.
func (a *Acquirer) Acquire(region Region, wantAudio bool) (*Stream, error) {
	selector, err := a.codecSelector()
	if err != nil {
		return nil, err
	}

	stream := &Stream{logger: a.logger}

	videoStream, err := a.getDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameRate = prop.Float(float32(a.cfg.FrameRate))
		},
		Codec: selector,
	})
	if err != nil {
		// The surface exists (the caller resolved it), so a video derivation
		// failure means the stream would be empty: terminal.
		return nil, fmt.Errorf("%w: screen capture failed: %v", ErrNoTracksAvailable, err)
	}

	videoTracks := videoStream.GetVideoTracks()
	if len(videoTracks) == 0 {
		stream.Release()
		return nil, fmt.Errorf("%w: screen capture produced no video track", ErrNoTracksAvailable)
	}
	stream.video = videoTracks[0]

	// Crop the captured display down to the render surface.
	if vt, ok := stream.video.(*mediadevices.VideoTrack); ok {
		vt.Transform(video.TransformFunc(cropTransform(region)))
	}

	if wantAudio {
		audioStream, aerr := a.getUserMedia(mediadevices.MediaStreamConstraints{
			Audio: func(c *mediadevices.MediaTrackConstraints) {},
			Codec: selector,
		})
		if aerr != nil {
			// Best-effort by design: report and continue video-only.
			a.logger.Log(diaglog.LogEntry{
				Component: diaglog.ComponentStreamAcquirer,
				Event:     diaglog.EventAudioDenied,
				Payload:   map[string]interface{}{"error": aerr.Error()},
			})
		} else if tracks := audioStream.GetAudioTracks(); len(tracks) > 0 {
			stream.audio = tracks[0]
		}
	}

	if stream.TrackCount() == 0 {
		stream.Release()
		return nil, ErrNoTracksAvailable
	}

	return stream, nil
}

// codecSelector registers every encoder a profile candidate may need; the
// session binds the selected profile later via the reader mime types.
func (a *Acquirer) codecSelector() (*mediadevices.CodecSelector, error) {
	vp8Params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 encoder params: %w", err)
	}
	vp8Params.BitRate = a.cfg.VideoBitRate

	vp9Params, err := vpx.NewVP9Params()
	if err != nil {
		return nil, fmt.Errorf("vp9 encoder params: %w", err)
	}
	vp9Params.BitRate = a.cfg.VideoBitRate

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus encoder params: %w", err)
	}
	opusParams.BitRate = a.cfg.AudioBitRate

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vp8Params, &vp9Params),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}

// cropTransform clips each captured display frame to the surface region.
func cropTransform(region Region) func(video.Reader) video.Reader {
	crop := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
	return func(r video.Reader) video.Reader {
		return video.ReaderFunc(func() (image.Image, func(), error) {
			img, release, err := r.Read()
			if err != nil {
				return nil, release, err
			}
			bounds := crop.Intersect(img.Bounds())
			if bounds.Empty() {
				// Surface scrolled off screen; keep the full frame rather
				// than emit nothing.
				return img, release, nil
			}
			if sub, ok := img.(interface {
				SubImage(image.Rectangle) image.Image
			}); ok {
				return sub.SubImage(bounds), release, nil
			}
			out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
			draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
			return out, release, nil
		})
	}
}
