package preprocess

import (
	"image"

	"github.com/MeKo-Tech/qrscan/internal/mempool"
)

// AdaptiveThreshold binarizes a grayscale grid against the local mean of a
// blockSize x blockSize neighborhood. A pixel becomes white when its value
// exceeds the local mean minus c. Even block sizes are rounded up to the
// next odd value. Local means are computed with an integral image so the
// cost is independent of block size.
func AdaptiveThreshold(src *image.Gray, blockSize, c int) *image.Gray {
	if blockSize < 3 {
		blockSize = 3
	}
	if blockSize%2 == 0 {
		blockSize++
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}

	// Integral image with a zero row/column border.
	stride := w + 1
	integral := mempool.GetSums(stride * (h + 1))
	defer mempool.PutSums(integral)
	for y := 0; y < h; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(src.Pix[si+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	r := blockSize / 2
	for y := 0; y < h; y++ {
		y0 := max(0, y-r)
		y1 := min(h-1, y+r)
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := dst.PixOffset(0, y)
		for x := 0; x < w; x++ {
			x0 := max(0, x-r)
			x1 := min(w-1, x+r)
			area := (x1 - x0 + 1) * (y1 - y0 + 1)
			sum := integral[(y1+1)*stride+x1+1] -
				integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] +
				integral[y0*stride+x0]
			mean := int(sum) / area
			if int(src.Pix[si+x]) > mean-c {
				dst.Pix[di+x] = 255
			}
		}
	}
	return dst
}

// OtsuThreshold binarizes a grayscale grid at the global threshold that
// maximizes between-class variance. With inverted=true the polarity flips,
// recovering light-on-dark codes.
func OtsuThreshold(src *image.Gray, inverted bool) *image.Gray {
	hist, total := histogram(src)
	level := otsuLevel(hist, total)

	var lut [256]uint8
	for i := range lut {
		above := uint8(i) > level
		if above != inverted {
			lut[i] = 255
		}
	}
	return applyLUT(src, &lut)
}

// otsuLevel scans all candidate thresholds and returns the one with the
// highest between-class variance.
func otsuLevel(hist [256]int, total int) uint8 {
	if total == 0 {
		return 0
	}
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}

	var sumB float64
	var wB int
	var maxVariance float64
	var best int
	for t, n := range hist {
		wB += n
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(n)
		meanB := sumB / float64(wB)
		meanF := (sumAll - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return uint8(best)
}
