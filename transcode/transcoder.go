// Package transcode normalizes uploaded report photos before they are stored.
package transcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	// registers the webp decoder with image.Decode
	_ "golang.org/x/image/webp"
)

const (
	// MaxInputBytes is the largest upload accepted for transcoding
	MaxInputBytes = 10 << 20
	// MaxPixels bounds the decoded size of an input, whatever its compressed size
	MaxPixels = 0x3FFF * 0x3FFF
	// MaxDimension bounds both width and height of the output
	MaxDimension = 1200
	// Quality is the JPEG quality of the output
	Quality = 80
	// ContentType of every transcoded image
	ContentType = "image/jpeg"
)

var (
	// ErrImageTooLarge is returned for input above MaxInputBytes
	ErrImageTooLarge = errors.New("image exceeds maximum size")
	// ErrTooManyPixels is returned when the declared dimensions exceed MaxPixels
	ErrTooManyPixels = errors.New("image dimensions exceed maximum pixel count")
	// ErrUnsupportedImage is returned when the input cannot be decoded
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")
)

// Result is a transcoded image
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Transcoder resizes images to fit a square box and re-encodes them as JPEG
type Transcoder struct {
	MaxBytes     int64
	MaxPixels    int64
	MaxDimension int
	Quality      int
}

// New returns a Transcoder with the default limits
func New() *Transcoder {
	return &Transcoder{
		MaxBytes:     MaxInputBytes,
		MaxPixels:    MaxPixels,
		MaxDimension: MaxDimension,
		Quality:      Quality,
	}
}

// Transcode decodes data, applies EXIF orientation, shrinks it to fit inside
// MaxDimension x MaxDimension and encodes it as JPEG. Smaller images are never upscaled.
func (t *Transcoder) Transcode(data []byte) (*Result, error) {
	if int64(len(data)) > t.MaxBytes {
		return nil, ErrImageTooLarge
	}

	// only the header is read here, before any pixel buffer is allocated
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > t.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	img = imaging.Fit(img, t.MaxDimension, t.MaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(t.Quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b := img.Bounds()
	return &Result{
		Data:        buf.Bytes(),
		ContentType: ContentType,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}
