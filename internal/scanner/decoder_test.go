package scanner

import (
	"image"
	"image/color"
	"testing"

	"github.com/rs/zerolog"
	qrgen "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = "ST00012|Name=Test Shop|Sum=10000|Purpose=Order 42"

func qrImage(t *testing.T, payload string, size int) *image.RGBA {
	t.Helper()
	code, err := qrgen.New(payload, qrgen.Medium)
	require.NoError(t, err)
	return ToRGBA(code.Image(size))
}

func invert(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		out.Pix[i] = 255 - img.Pix[i]
		out.Pix[i+1] = 255 - img.Pix[i+1]
		out.Pix[i+2] = 255 - img.Pix[i+2]
		out.Pix[i+3] = 255
	}
	return out
}

func TestZXingDecoder_RoundTrip(t *testing.T) {
	d := NewZXingDecoder(zerolog.Nop())
	img := qrImage(t, samplePayload, 320)

	payload, ok := d.Decode(img.Pix, 320, 320, DecodeOptions{Inversion: DontInvert})
	require.True(t, ok)
	assert.Equal(t, samplePayload, payload)
}

func TestZXingDecoder_AttemptBothFindsInvertedSymbol(t *testing.T) {
	d := NewZXingDecoder(zerolog.Nop())
	img := invert(qrImage(t, samplePayload, 320))

	payload, ok := d.Decode(img.Pix, 320, 320, DecodeOptions{Inversion: AttemptBoth})
	require.True(t, ok)
	assert.Equal(t, samplePayload, payload)
}

func TestZXingDecoder_NoSymbol(t *testing.T) {
	d := NewZXingDecoder(zerolog.Nop())
	blank := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range blank.Pix {
		blank.Pix[i] = 255
	}

	_, ok := d.Decode(blank.Pix, 64, 64, DecodeOptions{Inversion: AttemptBoth})
	assert.False(t, ok)
}

func TestZXingDecoder_MalformedInput(t *testing.T) {
	d := NewZXingDecoder(zerolog.Nop())

	tests := []struct {
		name   string
		pix    []byte
		width  int
		height int
	}{
		{name: "zero width", pix: make([]byte, 16), width: 0, height: 4},
		{name: "negative height", pix: make([]byte, 16), width: 4, height: -1},
		{name: "short buffer", pix: make([]byte, 10), width: 4, height: 4},
		{name: "nil buffer", pix: nil, width: 2, height: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, ok := d.Decode(tt.pix, tt.width, tt.height, DecodeOptions{})
			assert.False(t, ok)
			assert.Empty(t, payload)
		})
	}
}

func TestToRGBA_NormalisesOrigin(t *testing.T) {
	src := image.NewGray(image.Rect(10, 10, 14, 12))
	src.SetGray(10, 10, color.Gray{Y: 200})

	out := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 4, 2), out.Bounds())
	assert.Equal(t, uint8(200), out.RGBAAt(0, 0).R)
}
