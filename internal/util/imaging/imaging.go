// Package imaging decodes clipboard image payloads and renders thumbnails.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

var ErrEmptyImage = errors.New("image has no pixels")

// IsPNG reports whether data starts with the PNG signature
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngMagic)
}

// Decode decodes any registered format (png, jpeg, gif, tiff, bmp, webp)
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, format, ErrEmptyImage
	}
	return img, format, nil
}

// EncodePNG encodes img as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizePNG returns data unchanged if it is PNG, otherwise re-encodes it
func NormalizePNG(data []byte) ([]byte, error) {
	if IsPNG(data) {
		return data, nil
	}
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// AspectFill scales src so it covers a width x height canvas and crops the
// overflow evenly from both sides.
func AspectFill(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == 0 || sh == 0 || width <= 0 || height <= 0 {
		return dst
	}

	// crop the source to the target aspect ratio
	var crop image.Rectangle
	if sw*height > sh*width {
		cw := sh * width / height
		x0 := b.Min.X + (sw-cw)/2
		crop = image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	} else {
		ch := sw * height / width
		y0 := b.Min.Y + (sh-ch)/2
		crop = image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
	}

	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}

// Size returns the pixel dimensions of img
func Size(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
