// Package preprocess implements the grayscale image enhancement primitives
// used by the detection fallback cascade. Every transform takes its input
// by value semantics: the source grid is never mutated and each call
// returns a newly owned grid.
package preprocess

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// ToGray converts an image to a single-channel grayscale grid. An input
// that is already *image.Gray is returned unchanged.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// CloneGray returns a deep copy of a grayscale grid, normalized to origin.
func CloneGray(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Upscale resizes a grayscale grid by the given factor using Lanczos
// resampling. Corner coordinates found on the result must be divided by
// factor to map back to the source coordinate space.
func Upscale(src *image.Gray, factor float64) *image.Gray {
	b := src.Bounds()
	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return ToGray(imaging.Resize(src, w, h, imaging.Lanczos))
}

// Sharpen applies unsharp-mask sharpening to accentuate module edges.
func Sharpen(src *image.Gray) *image.Gray {
	return ToGray(imaging.Sharpen(src, 1.5))
}

// applyLUT maps every pixel of src through a 256-entry lookup table.
func applyLUT(src *image.Gray, lut *[256]uint8) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := dst.PixOffset(0, y)
		for x := 0; x < w; x++ {
			dst.Pix[di+x] = lut[src.Pix[si+x]]
		}
	}
	return dst
}

// histogram counts pixel intensities of a grayscale grid.
func histogram(src *image.Gray) (hist [256]int, total int) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			hist[src.Pix[si+x]]++
		}
	}
	return hist, w * h
}
