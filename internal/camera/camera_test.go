package camera

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/qrpay/pkg/config"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestVideoSink_AttachAndDetach(t *testing.T) {
	dev := &ReplayDevice{Frames: []image.Image{solid(8, 6, color.Black)}, Loop: true}
	stream, err := dev.Open(context.Background(), DefaultConstraints())
	require.NoError(t, err)

	sink := NewVideoSink()
	assert.Equal(t, HaveNothing, sink.ReadyState())

	require.NoError(t, sink.Attach(context.Background(), stream))
	assert.Equal(t, HaveEnoughData, sink.ReadyState())

	w, h := sink.VideoSize()
	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sink.DrawFrame(dst)
	assert.Equal(t, color.RGBA{A: 255}, dst.RGBAAt(3, 3))

	StopTracks(stream)
	sink.Detach()
	assert.Equal(t, HaveNothing, sink.ReadyState())
	for _, tr := range stream.Tracks() {
		assert.False(t, tr.Live())
	}
}

func TestVideoSink_AttachTimesOut(t *testing.T) {
	sink := NewVideoSink()
	stream := &stalledStream{frames: make(chan image.Image)}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sink.Attach(ctx, stream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, HaveNothing, sink.ReadyState())
}

func TestVideoSink_StreamEndsBeforeFirstFrame(t *testing.T) {
	frames := make(chan image.Image)
	close(frames)

	err := NewVideoSink().Attach(context.Background(), &stalledStream{frames: frames})
	assert.ErrorIs(t, err, ErrStreamEnded)
}

func TestReplayDevice_NoFrames(t *testing.T) {
	_, err := (&ReplayDevice{}).Open(context.Background(), DefaultConstraints())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewReplayDeviceFromDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.png"} {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, solid(4, 4, color.White)))
		require.NoError(t, f.Close())
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	dev, err := NewReplayDeviceFromDir(dir, false)
	require.NoError(t, err)
	assert.Len(t, dev.Frames, 2)
}

func TestSimulatedDevice_FrameSize(t *testing.T) {
	c := DefaultConstraints()
	stream, err := (&SimulatedDevice{Payload: "hello"}).Open(context.Background(), c)
	require.NoError(t, err)
	defer StopTracks(stream)

	frame := <-stream.Frames()
	assert.Equal(t, 1280, frame.Bounds().Dx())
	assert.Equal(t, 720, frame.Bounds().Dy())
}

func TestUnavailableDevice(t *testing.T) {
	_, err := (&UnavailableDevice{Err: ErrPermissionDenied}).Open(context.Background(), DefaultConstraints())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestConstraintsFromConfig(t *testing.T) {
	c := ConstraintsFromConfig(config.Default().Scanner)
	assert.Equal(t, DefaultConstraints(), c)

	c = ConstraintsFromConfig(config.ScannerConfig{IdealWidth: 1920, FacingMode: "user"})
	assert.Equal(t, 1920, c.Width.Ideal)
	assert.Equal(t, 640, c.Width.Min)
	assert.Equal(t, FacingUser, c.FacingMode)
	assert.False(t, c.Audio)
}

type stalledStream struct {
	frames chan image.Image
}

func (s *stalledStream) ID() string                 { return "stalled" }
func (s *stalledStream) Tracks() []Track            { return nil }
func (s *stalledStream) Frames() <-chan image.Image { return s.frames }
