package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGrayPassthrough(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 4))
	assert.Same(t, g, ToGray(g))
}

func TestToGrayConvertsColor(t *testing.T) {
	src := image.NewRGBA(image.Rect(2, 3, 10, 11))
	for y := 3; y < 11; y++ {
		for x := 2; x < 10; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	g := ToGray(src)
	// Normalized to origin with the same dimensions.
	assert.Equal(t, image.Rect(0, 0, 8, 8), g.Bounds())
	// Luma of (200,100,50) lands mid-range.
	v := g.GrayAt(0, 0).Y
	assert.Greater(t, v, uint8(80))
	assert.Less(t, v, uint8(160))
}

func TestCloneGrayIndependent(t *testing.T) {
	src := fillGray(8, 8, func(x, y int) uint8 { return uint8(x + y) })
	dup := CloneGray(src)
	dup.Pix[0] = 99
	assert.Equal(t, uint8(0), src.Pix[0])
}

func TestUpscaleDimensions(t *testing.T) {
	src := fillGray(100, 60, func(x, y int) uint8 { return uint8(x) })
	up := Upscale(src, 2.0)
	assert.Equal(t, 200, up.Bounds().Dx())
	assert.Equal(t, 120, up.Bounds().Dy())

	frac := Upscale(src, 1.5)
	assert.Equal(t, 150, frac.Bounds().Dx())
	assert.Equal(t, 90, frac.Bounds().Dy())
}

func TestSharpenPreservesDimensions(t *testing.T) {
	src := fillGray(40, 30, func(x, y int) uint8 {
		if x < 20 {
			return 60
		}
		return 190
	})
	out := Sharpen(src)
	assert.Equal(t, 40, out.Bounds().Dx())
	assert.Equal(t, 30, out.Bounds().Dy())
}

func TestGammaIdentity(t *testing.T) {
	src := fillGray(16, 16, func(x, y int) uint8 { return uint8(x*16 + y) })
	out := Gamma(src, 1.0)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestGammaBrightensAndDarkens(t *testing.T) {
	src := fillGray(8, 8, func(x, y int) uint8 { return 64 })
	bright := Gamma(src, 0.5)
	dark := Gamma(src, 2.2)
	assert.Greater(t, bright.Pix[0], uint8(64))
	assert.Less(t, dark.Pix[0], uint8(64))
}

func TestEqualizeHistStretchesRange(t *testing.T) {
	// Low-contrast bimodal image squeezed into [100, 140].
	src := fillGray(32, 32, func(x, y int) uint8 {
		if x < 16 {
			return 100
		}
		return 140
	})
	out := EqualizeHist(src)
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), out.GrayAt(31, 0).Y)
}

func TestEqualizeHistUniformImage(t *testing.T) {
	src := fillGray(16, 16, func(x, y int) uint8 { return 77 })
	out := EqualizeHist(src)
	// A single-intensity image has no distribution to stretch.
	assert.Equal(t, uint8(77), out.GrayAt(3, 3).Y)
}

func TestCLAHEImprovesLocalContrast(t *testing.T) {
	// Faint checkerboard in a narrow band.
	src := fillGray(64, 64, func(x, y int) uint8 {
		if (x/8+y/8)%2 == 0 {
			return 118
		}
		return 138
	})
	out := CLAHE(src, 2.0, 4)
	require.Equal(t, src.Bounds(), out.Bounds())

	outMin, outMax := uint8(255), uint8(0)
	for _, p := range out.Pix {
		if p < outMin {
			outMin = p
		}
		if p > outMax {
			outMax = p
		}
	}
	// Contrast limiting bounds the stretch, but the 20-level band must
	// not collapse.
	assert.GreaterOrEqual(t, int(outMax)-int(outMin), 20)
	assert.NotEqual(t, src.Pix, out.Pix)
}

func TestBilateralSmoothsNoiseKeepsEdges(t *testing.T) {
	// Step edge with a single speckle on the dark side.
	src := fillGray(32, 32, func(x, y int) uint8 {
		if x < 16 {
			return 40
		}
		return 220
	})
	src.SetGray(5, 5, color.Gray{Y: 250})

	out := Bilateral(src, 9, 75, 75)
	require.Equal(t, src.Bounds(), out.Bounds())

	// Speckle pulled toward its neighborhood.
	assert.Less(t, out.GrayAt(5, 5).Y, uint8(250))
	// Edge stays sharp: both sides keep values near their plateau.
	assert.Less(t, out.GrayAt(14, 20).Y, uint8(90))
	assert.Greater(t, out.GrayAt(17, 20).Y, uint8(170))
}

func TestMorphCloseFillsPinholes(t *testing.T) {
	// White field with a single black pinhole.
	src := fillGray(20, 20, func(x, y int) uint8 { return 255 })
	src.SetGray(10, 10, color.Gray{Y: 0})

	out := MorphClose(src, 3)
	assert.Equal(t, uint8(255), out.GrayAt(10, 10).Y)
}

func TestMorphClosePreservesLargeRegions(t *testing.T) {
	// A 8x8 black block must survive a 3x3 closing.
	src := fillGray(32, 32, func(x, y int) uint8 {
		if x >= 12 && x < 20 && y >= 12 && y < 20 {
			return 0
		}
		return 255
	})
	out := MorphClose(src, 3)
	assert.Equal(t, uint8(0), out.GrayAt(15, 15).Y)
}
