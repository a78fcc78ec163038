package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/tuncanbit/qrpay/internal/domain"
)

// ImageFileScanner decodes a QR code from an uploaded picture. There is no retry.
type ImageFileScanner struct {
	decoder Decoder
	logger  zerolog.Logger
}

func NewImageFileScanner(decoder Decoder, logger zerolog.Logger) *ImageFileScanner {
	return &ImageFileScanner{
		decoder: decoder,
		logger:  logger.With().Str("component", "image_scanner").Logger(),
	}
}

func (s *ImageFileScanner) Scan(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read image")
		return "", domain.NewError(domain.KindFileReadFailure, "", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Error().Err(err).Int("size", len(data)).Msg("Failed to load image")
		return "", domain.NewError(domain.KindImageLoadFailure, "", err)
	}

	payload, ok := DecodeImage(s.decoder, img, DecodeOptions{Inversion: DontInvert})
	if !ok {
		b := img.Bounds()
		s.logger.Info().Str("format", format).Int("width", b.Dx()).Int("height", b.Dy()).Msg("No QR code found in image")
		return "", domain.NewError(domain.KindDecodeFailure, "", errors.New("no QR symbol in image"))
	}

	s.logger.Info().Str("format", format).Int("payload_len", len(payload)).Msg("QR code decoded from image")
	return payload, nil
}

func (s *ImageFileScanner) ScanFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", domain.NewError(domain.KindFileReadFailure, "", fmt.Errorf("failed to open %s: %w", path, err))
	}
	defer f.Close()

	return s.Scan(ctx, f)
}
