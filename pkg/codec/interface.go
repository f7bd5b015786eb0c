// Package codec declares the image operations the slide model delegates to an
// image library. The core never decodes pixels itself.
package codec

import (
	"fmt"
	"image"
	"strings"
)

// ImageCodec opens, resizes, crops and saves raster images.
type ImageCodec interface {
	// Open returns the pixel dimensions of the image at path.
	Open(path string) (width, height int, err error)
	Decode(path string) (image.Image, error)
	Resize(img image.Image, width, height int) image.Image
	Crop(img image.Image, rect image.Rectangle) (image.Image, error)
	// Save encodes img to path. Implementations must not leave a partial file
	// behind on failure.
	Save(img image.Image, path string, format Format) error
}

// Format is an output encoding
type Format string

const (
	TIFF Format = "tif"
	PNG  Format = "png"
	JPEG Format = "jpg"
	WebP Format = "webp"
)

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// ParseFormat accepts the usual spellings of the supported formats.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "tif", "tiff":
		return TIFF, nil
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	}
	return "", fmt.Errorf("unsupported image format: %q", s)
}
