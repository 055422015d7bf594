package preprocess

import (
	"image"
	"math"
)

// Bilateral applies an edge-preserving bilateral filter: each output pixel
// is a weighted mean of its d x d neighborhood where weights fall off with
// both spatial distance (sigmaSpace) and intensity difference (sigmaColor).
// Speckle noise is smoothed while module boundaries stay sharp.
func Bilateral(src *image.Gray, d int, sigmaColor, sigmaSpace float64) *image.Gray {
	if d < 3 {
		d = 3
	}
	if d%2 == 0 {
		d++
	}
	if sigmaColor <= 0 {
		sigmaColor = 75
	}
	if sigmaSpace <= 0 {
		sigmaSpace = 75
	}
	r := d / 2

	// Precomputed spatial kernel and intensity-difference weight table.
	spatial := make([]float64, d*d)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			dist2 := float64(dx*dx + dy*dy)
			spatial[(dy+r)*d+(dx+r)] = math.Exp(-dist2 / (2 * sigmaSpace * sigmaSpace))
		}
	}
	var rangeW [256]float64
	for i := range rangeW {
		diff := float64(i)
		rangeW[i] = math.Exp(-diff * diff / (2 * sigmaColor * sigmaColor))
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		di := dst.PixOffset(0, y)
		ci := src.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			center := src.Pix[ci+x]
			var sum, norm float64
			for dy := -r; dy <= r; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				ni := src.PixOffset(b.Min.X, b.Min.Y+ny)
				for dx := -r; dx <= r; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					v := src.Pix[ni+nx]
					diff := int(v) - int(center)
					if diff < 0 {
						diff = -diff
					}
					wgt := spatial[(dy+r)*d+(dx+r)] * rangeW[diff]
					sum += wgt * float64(v)
					norm += wgt
				}
			}
			dst.Pix[di+x] = uint8(math.Round(sum / norm))
		}
	}
	return dst
}
