package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// OptimizeOptions controls how uploaded images are re-encoded.
type OptimizeOptions struct {
	MaxWidth  int // images wider than this are downscaled; 0 keeps the width
	Quality   int // JPEG quality, 1..100
	Grayscale bool
}

// DefaultOptimizeOptions suit hero images and gallery tiles on a generated site.
var DefaultOptimizeOptions = OptimizeOptions{MaxWidth: 1600, Quality: 82}

// resize downscales an image using BiLinear resampling.
func resize(src image.Image, dstW, dstH int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func toGrayscale(src image.Image) *image.Gray {
	b := src.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return gray
}

// flattenAlpha composites src onto a white background.
func flattenAlpha(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}

func isAnimatedGIF(data []byte) bool {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return len(g.Image) > 1
}

// passThrough reports whether an image of this type is stored as uploaded.
func passThrough(mime string, data []byte) bool {
	switch {
	case strings.Contains(mime, "svg"):
		return true
	case strings.Contains(mime, "avif"):
		// no Go decoder; already well-compressed
		return true
	case strings.Contains(mime, "gif") && isAnimatedGIF(data):
		return true
	}
	return !strings.HasPrefix(mime, "image/")
}

// Optimize re-encodes an image as JPEG, downscaled to opts.MaxWidth. ok is
// false when the image should be stored unchanged.
func Optimize(data []byte, mime string, opts OptimizeOptions) (out []byte, ok bool, err error) {
	if passThrough(mime, data) {
		return nil, false, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", mime, err)
	}
	img = flattenAlpha(img)

	// Downscale by width only (never upscale)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if opts.MaxWidth > 0 && w > opts.MaxWidth {
		ratio := float64(opts.MaxWidth) / float64(w)
		newH := max(1, int(math.Round(float64(h)*ratio)))
		img = resize(img, opts.MaxWidth, newH)
	}

	if opts.Grayscale {
		img = toGrayscale(img)
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, false, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), true, nil
}
