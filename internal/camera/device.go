package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skip2/go-qrcode"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ReplayDevice plays a fixed sequence of frames, looping when Loop is set.
type ReplayDevice struct {
	Frames []image.Image
	Loop   bool
}

// NewReplayDeviceFromDir loads every decodable image in dir, in name order.
func NewReplayDeviceFromDir(dir string, loop bool) (*ReplayDevice, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	frames := make([]image.Image, 0, len(names))
	for _, name := range names {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}

	return &ReplayDevice{Frames: frames, Loop: loop}, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", path, err)
	}
	return img, nil
}

func (d *ReplayDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.Frames) == 0 {
		return nil, ErrNotFound
	}
	frames := d.Frames
	loop := d.Loop
	return newFrameStream(c.FrameRate.Pick(), func(i int) (image.Image, bool) {
		if i >= len(frames) {
			if !loop {
				return nil, false
			}
			i %= len(frames)
		}
		return frames[i], true
	}), nil
}

// SimulatedDevice shows BlankFrames empty frames, then a QR code for Payload
// on every following frame.
type SimulatedDevice struct {
	Payload     string
	BlankFrames int
}

func (d *SimulatedDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width, height := c.Width.Pick(), c.Height.Pick()
	if width <= 0 || height <= 0 {
		return nil, ErrNotSupported
	}

	blank := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(blank, blank.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	coded, err := QRFrame(d.Payload, width, height)
	if err != nil {
		return nil, err
	}

	blanks := d.BlankFrames
	return newFrameStream(c.FrameRate.Pick(), func(i int) (image.Image, bool) {
		if i < blanks {
			return blank, true
		}
		return coded, true
	}), nil
}

// QRFrame renders payload as a QR symbol centred on a white frame.
func QRFrame(payload string, width, height int) (*image.RGBA, error) {
	size := width
	if height < size {
		size = height
	}
	size = size * 3 / 4

	code, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to encode simulated payload: %w", err)
	}
	symbol := code.Image(size)

	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	sb := symbol.Bounds()
	offset := image.Pt((width-sb.Dx())/2, (height-sb.Dy())/2)
	draw.Draw(frame, sb.Add(offset), symbol, sb.Min, draw.Src)
	return frame, nil
}

// UnavailableDevice always fails with Err; it stands in for a platform
// without a usable camera.
type UnavailableDevice struct {
	Err error
}

func (d *UnavailableDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.Err == nil {
		return nil, ErrNotFound
	}
	return nil, d.Err
}
