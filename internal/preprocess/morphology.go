package preprocess

import (
	"image"

	"github.com/MeKo-Tech/qrscan/internal/mempool"
)

// MorphClose performs a morphological closing (dilate then erode) with a
// square kernel x kernel structuring element. On a binarized grid this
// fills small gaps and pinholes inside dark module boundaries.
func MorphClose(src *image.Gray, kernel int) *image.Gray {
	if kernel < 3 {
		kernel = 3
	}
	if kernel%2 == 0 {
		kernel++
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}

	dilated := mempool.GetBytes(w * h)
	defer mempool.PutBytes(dilated)

	r := kernel / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var maxV uint8
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
					if v := src.Pix[ni+nx]; v > maxV {
						maxV = v
					}
				}
			}
			dilated[y*w+x] = maxV
		}
	}

	for y := 0; y < h; y++ {
		di := dst.PixOffset(0, y)
		for x := 0; x < w; x++ {
			minV := uint8(255)
			for dy := -r; dy <= r; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -r; dx <= r; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					if v := dilated[ny*w+nx]; v < minV {
						minV = v
					}
				}
			}
			dst.Pix[di+x] = minV
		}
	}
	return dst
}
