// Package imaging decodes submitted photographs and normalizes them to the
// configured storage size before they are written to disk.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

var (
	ErrDecode            = errors.New("imaging: invalid image data")
	ErrWrite             = errors.New("imaging: cannot write image")
	ErrUnsupportedFormat = errors.New("imaging: unsupported output format")
	// ErrTooLarge is an ErrDecode for images whose pixel count exceeds the cap.
	ErrTooLarge = fmt.Errorf("%w: too many pixels", ErrDecode)
)

const jpegQuality = 90

// DefaultMaxPixels caps both decoded sources and resized outputs.
const DefaultMaxPixels = 40_000_000

// Size is a target size in pixels. Height comes first, as in the IMAGE_SIZE setting.
type Size struct {
	Height int
	Width  int
}

// Normalize cover-resizes img so that both axes are at least the target size,
// preserving the aspect ratio. With crop set, the result is then cut to exactly
// the target size around the center. A resize that would exceed maxPixels
// fails with ErrTooLarge before anything is allocated.
func Normalize(img image.Image, size Size, crop bool, maxPixels int) (image.Image, error) {
	w, h := CoverDimensions(img.Bounds().Dx(), img.Bounds().Dy(), size)
	if err := CheckPixels(w, h, maxPixels); err != nil {
		return nil, err
	}

	resized := Resize(img, size)
	if !crop {
		return resized, nil
	}
	return CenterCrop(resized, size), nil
}

// CheckPixels rejects empty dimensions and, when maxPixels is positive,
// any w x h above it.
func CheckPixels(w, h, maxPixels int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", ErrDecode, w, h)
	}
	if maxPixels > 0 && int64(w)*int64(h) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrTooLarge, w, h, maxPixels)
	}
	return nil
}

// Resize scales img by the smaller of the two source/target ratios.
func Resize(img image.Image, size Size) image.Image {
	w, h := CoverDimensions(img.Bounds().Dx(), img.Bounds().Dy(), size)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// CoverDimensions returns the resized width and height for a source of
// srcW x srcH. Float truncation can leave an axis one pixel short of the
// target, so each axis is clamped up to it.
func CoverDimensions(srcW, srcH int, size Size) (int, int) {
	heightRatio := float64(srcH) / float64(size.Height)
	widthRatio := float64(srcW) / float64(size.Width)

	scale := widthRatio
	if heightRatio < widthRatio {
		scale = heightRatio
	}

	w := int(float64(srcW) / scale)
	h := int(float64(srcH) / scale)
	if w < size.Width {
		w = size.Width
	}
	if h < size.Height {
		h = size.Height
	}
	return w, h
}

// CropBox returns the centered target-sized rectangle inside bounds.
// Offsets are floored: an odd surplus leaves the extra pixel on the right/bottom.
func CropBox(bounds image.Rectangle, size Size) image.Rectangle {
	left := bounds.Min.X + (bounds.Dx()-size.Width)/2
	top := bounds.Min.Y + (bounds.Dy()-size.Height)/2
	return image.Rect(left, top, left+size.Width, top+size.Height)
}

// CenterCrop copies the CropBox of img into a new image anchored at (0,0).
func CenterCrop(img image.Image, size Size) image.Image {
	box := CropBox(img.Bounds(), size)
	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(dst, dst.Bounds(), img, box.Min, draw.Src)
	return dst
}

// Save encodes img to path using the format implied by the path's extension.
func Save(img image.Image, path string) error {
	encode, err := encoderFor(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	if err := encode(f, img); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("%w: encode %s: %v", ErrWrite, filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

type encodeFunc func(f *os.File, img image.Image) error

func encoderFor(path string) (encodeFunc, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return func(f *os.File, img image.Image) error { return png.Encode(f, img) }, nil
	case "jpg", "jpeg":
		return func(f *os.File, img image.Image) error {
			return jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
		}, nil
	case "gif":
		return func(f *os.File, img image.Image) error { return gif.Encode(f, img, nil) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}
