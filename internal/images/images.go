// Package images validates, shrinks and uploads the images embedded in
// campaign and template bodies.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decode support
)

const (
	DefaultMaxBytes  = 5 * 1024 * 1024
	DefaultMaxWidth  = 800
	DefaultMaxHeight = 600
	// DefaultMaxPixels bounds decoded dimensions, since a tiny compressed
	// file can still describe an enormous canvas.
	DefaultMaxPixels = 40_000_000
	jpegQuality      = 85
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds maximum size")
)

// SupportedTypes maps accepted content types to file extensions.
var SupportedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Validate checks the declared content type and size of an upload.
func Validate(contentType string, size, maxBytes int64) error {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if _, ok := SupportedTypes[ct]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if size > maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, size, maxBytes)
	}
	return nil
}

// CheckDimensions reads only the image header and refuses canvases larger
// than maxPixels.
func CheckDimensions(data []byte, maxPixels int64) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: reading header: %v", ErrUnsupportedType, err)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return fmt.Errorf("%w: %dx%d pixels, limit %d", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// Fit scales w x h down to fit within maxW x maxH keeping the aspect
// ratio. Images already inside the box are returned unchanged.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := float64(maxW) / float64(w)
	if r := float64(maxH) / float64(h); r < ratio {
		ratio = r
	}
	nw := int(float64(w)*ratio + 0.5)
	nh := int(float64(h)*ratio + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// Resize shrinks img to fit the box. It reports false when no resize was needed.
func Resize(img image.Image, maxW, maxH int) (image.Image, bool) {
	bounds := img.Bounds()
	nw, nh := Fit(bounds.Dx(), bounds.Dy(), maxW, maxH)
	if nw == bounds.Dx() && nh == bounds.Dy() {
		return img, false
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst, true
}

// Encode writes img in the given decoded format. WebP has no encoder, so
// it is written as PNG; the returned content type reflects that.
func Encode(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	var contentType string
	var err error

	switch format {
	case "jpeg":
		contentType = "image/jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		contentType = "image/gif"
		err = gif.Encode(&buf, img, nil)
	default:
		contentType = "image/png"
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encoding %s: %w", format, err)
	}
	return buf.Bytes(), contentType, nil
}
