package scanner

import (
	"image"
	"image/draw"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/rs/zerolog"
)

type Inversion int

const (
	// DontInvert looks for dark-on-light symbols only.
	DontInvert Inversion = iota
	// AttemptBoth retries on the inverted image when the first pass finds nothing.
	AttemptBoth
)

type DecodeOptions struct {
	Inversion Inversion
}

// Decoder finds a QR symbol in an RGBA buffer (4 bytes per pixel, stride width*4).
// It never fails loudly: malformed input is reported as no symbol.
type Decoder interface {
	Decode(pix []byte, width, height int, opts DecodeOptions) (string, bool)
}

type ZXingDecoder struct {
	logger zerolog.Logger
	hints  map[gozxing.DecodeHintType]interface{}
}

func NewZXingDecoder(logger zerolog.Logger) *ZXingDecoder {
	return &ZXingDecoder{
		logger: logger.With().Str("component", "decoder").Logger(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (d *ZXingDecoder) Decode(pix []byte, width, height int, opts DecodeOptions) (payload string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn().Interface("panic", r).Int("width", width).Int("height", height).Msg("Decoder panicked, treating frame as empty")
			payload, ok = "", false
		}
	}()

	if width <= 0 || height <= 0 || len(pix) < width*height*4 {
		return "", false
	}

	img := &image.RGBA{
		Pix:    pix[:width*height*4],
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}

	src := gozxing.NewLuminanceSourceFromImage(img)

	if payload, ok := d.decodeSource(src); ok {
		return payload, true
	}
	if opts.Inversion == AttemptBoth {
		return d.decodeSource(src.Invert())
	}
	return "", false
}

func (d *ZXingDecoder) decodeSource(src gozxing.LuminanceSource) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(src))
	if err != nil {
		return "", false
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		return "", false
	}
	text := result.GetText()
	if text == "" {
		return "", false
	}
	return text, true
}

// ToRGBA copies img into a fresh RGBA buffer at its native size, origin at 0,0.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// DecodeImage runs d over img.
func DecodeImage(d Decoder, img image.Image, opts DecodeOptions) (string, bool) {
	rgba := ToRGBA(img)
	b := rgba.Bounds()
	return d.Decode(rgba.Pix, b.Dx(), b.Dy(), opts)
}
