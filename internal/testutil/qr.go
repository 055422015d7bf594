// Package testutil generates synthetic QR fixtures for tests: clean
// renders plus the degradations the cascade exists to recover from
// (inverted polarity, crushed contrast, noise, tiny scale).
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
)

// RenderQR renders payload as a size x size QR code with a quiet zone.
func RenderQR(t *testing.T, payload string, size int) image.Image {
	t.Helper()
	writer := qrcode.NewQRCodeWriter()
	matrix, err := writer.Encode(payload, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	require.NoError(t, err)
	return matrix
}

// RenderQRAt places a rendered QR code onto a larger light-gray canvas at
// the given offset, returning the composite and the code's bounding box.
func RenderQRAt(t *testing.T, payload string, qrSize, canvasW, canvasH, offX, offY int) (image.Image, image.Rectangle) {
	t.Helper()
	code := RenderQR(t, payload, qrSize)
	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{color.RGBA{R: 230, G: 230, B: 230, A: 255}}, image.Point{}, draw.Src)
	box := image.Rect(offX, offY, offX+qrSize, offY+qrSize)
	draw.Draw(canvas, box, code, code.Bounds().Min, draw.Src)
	return canvas, box
}

// Invert flips every pixel's brightness, turning a dark-on-light code into
// a light-on-dark one.
func Invert(img image.Image) *image.Gray {
	g := toGray(img)
	out := image.NewGray(g.Bounds())
	for i, p := range g.Pix {
		out.Pix[i] = 255 - p
	}
	return out
}

// CrushContrast linearly maps the full intensity range into [lo, hi].
func CrushContrast(img image.Image, lo, hi uint8) *image.Gray {
	g := toGray(img)
	out := image.NewGray(g.Bounds())
	span := float64(hi) - float64(lo)
	for i, p := range g.Pix {
		out.Pix[i] = lo + uint8(float64(p)/255.0*span)
	}
	return out
}

// AddNoise perturbs each pixel by up to amplitude levels using a fixed
// seed so fixtures stay deterministic across runs.
func AddNoise(img image.Image, seed int64, amplitude int) *image.Gray {
	g := toGray(img)
	out := image.NewGray(g.Bounds())
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test noise
	for i, p := range g.Pix {
		delta := rng.Intn(2*amplitude+1) - amplitude
		v := int(p) + delta
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		out.Pix[i] = uint8(v)
	}
	return out
}

// Shrink downscales an image to the given width, preserving aspect ratio.
func Shrink(img image.Image, width int) image.Image {
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
