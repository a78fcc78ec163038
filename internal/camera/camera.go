// Package camera models a video capture device, the stream it produces and
// the sink that renders frames for sampling.
package camera

import (
	"context"
	"errors"
	"image"
	"image/draw"

	"github.com/tuncanbit/qrpay/pkg/config"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNotFound         = errors.New("camera not found")
	ErrNotSupported     = errors.New("camera not supported")
	ErrInsecureContext  = errors.New("camera requires a secure context (HTTPS)")
	ErrStreamEnded      = errors.New("camera stream ended")
)

// ReadyState mirrors how much media a sink has buffered.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

func (r ReadyState) String() string {
	switch r {
	case HaveMetadata:
		return "have_metadata"
	case HaveCurrentData:
		return "have_current_data"
	case HaveFutureData:
		return "have_future_data"
	case HaveEnoughData:
		return "have_enough_data"
	default:
		return "have_nothing"
	}
}

type FacingMode string

const (
	FacingEnvironment FacingMode = "environment"
	FacingUser        FacingMode = "user"
)

type Range struct {
	Min   int
	Ideal int
}

// Pick returns Ideal when set, else Min.
func (r Range) Pick() int {
	if r.Ideal > 0 {
		return r.Ideal
	}
	return r.Min
}

type Constraints struct {
	Width      Range
	Height     Range
	FrameRate  Range
	FacingMode FacingMode
	Audio      bool
}

func DefaultConstraints() Constraints {
	return Constraints{
		Width:      Range{Min: 640, Ideal: 1280},
		Height:     Range{Min: 480, Ideal: 720},
		FrameRate:  Range{Min: 15, Ideal: 30},
		FacingMode: FacingEnvironment,
	}
}

func ConstraintsFromConfig(cfg config.ScannerConfig) Constraints {
	c := DefaultConstraints()
	if cfg.IdealWidth > 0 {
		c.Width.Ideal = cfg.IdealWidth
	}
	if cfg.MinWidth > 0 {
		c.Width.Min = cfg.MinWidth
	}
	if cfg.IdealHeight > 0 {
		c.Height.Ideal = cfg.IdealHeight
	}
	if cfg.MinHeight > 0 {
		c.Height.Min = cfg.MinHeight
	}
	if cfg.IdealFrameRate > 0 {
		c.FrameRate.Ideal = cfg.IdealFrameRate
	}
	if cfg.MinFrameRate > 0 {
		c.FrameRate.Min = cfg.MinFrameRate
	}
	if cfg.FacingMode != "" {
		c.FacingMode = FacingMode(cfg.FacingMode)
	}
	return c
}

type Track interface {
	Kind() string
	Stop()
	Live() bool
}

// Stream is a live capture. Frames is closed once every track has stopped.
type Stream interface {
	ID() string
	Tracks() []Track
	Frames() <-chan image.Image
}

type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Sink renders a stream. Attach returns once the first frame is presentable.
type Sink interface {
	Attach(ctx context.Context, s Stream) error
	Detach()
	ReadyState() ReadyState
	VideoSize() (width, height int)
	DrawFrame(dst draw.Image)
}

// StopTracks stops every track of s.
func StopTracks(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
