package preprocess

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fillGray builds a w x h grid where each pixel value comes from fn.
func fillGray(w, h int, fn func(x, y int) uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Pix[y*g.Stride+x] = fn(x, y)
		}
	}
	return g
}

func TestAdaptiveThresholdBinaryOutput(t *testing.T) {
	// Dark square on a light background with a brightness gradient.
	src := fillGray(64, 64, func(x, y int) uint8 {
		if x >= 20 && x < 44 && y >= 20 && y < 44 {
			return uint8(30 + x)
		}
		return uint8(150 + y/2)
	})
	dst := AdaptiveThreshold(src, 11, 2)
	require.Equal(t, src.Bounds().Dx(), dst.Bounds().Dx())
	require.Equal(t, src.Bounds().Dy(), dst.Bounds().Dy())
	for _, p := range dst.Pix {
		if p != 0 && p != 255 {
			t.Fatalf("non-binary output value %d", p)
		}
	}
	// The square interior must come out dark against its lighter surround.
	assert.Equal(t, uint8(0), dst.GrayAt(21, 32).Y)
	assert.Equal(t, uint8(255), dst.GrayAt(5, 5).Y)
}

func TestAdaptiveThresholdDoesNotMutateSource(t *testing.T) {
	src := fillGray(16, 16, func(x, y int) uint8 { return uint8(x * 16) })
	before := append([]uint8(nil), src.Pix...)
	_ = AdaptiveThreshold(src, 4, 2) // even block size is rounded up
	assert.Equal(t, before, src.Pix)
}

func TestOtsuThresholdBimodal(t *testing.T) {
	src := fillGray(32, 32, func(x, y int) uint8 {
		if x < 16 {
			return 50
		}
		return 200
	})
	dst := OtsuThreshold(src, false)
	assert.Equal(t, uint8(0), dst.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), dst.GrayAt(31, 0).Y)
}

func TestOtsuThresholdInvertedFlipsPolarity(t *testing.T) {
	src := fillGray(32, 32, func(x, y int) uint8 {
		if (x/4+y/4)%2 == 0 {
			return 40
		}
		return 210
	})
	normal := OtsuThreshold(src, false)
	inverted := OtsuThreshold(src, true)
	for i := range normal.Pix {
		assert.Equal(t, normal.Pix[i], 255-inverted.Pix[i])
	}
}

func TestOtsuLevelSeparatesModes(t *testing.T) {
	var hist [256]int
	hist[50] = 500
	hist[200] = 500
	level := otsuLevel(hist, 1000)
	assert.GreaterOrEqual(t, level, uint8(50))
	assert.Less(t, level, uint8(200))
}

func TestOtsuLevelEmpty(t *testing.T) {
	var hist [256]int
	assert.Equal(t, uint8(0), otsuLevel(hist, 0))
}
