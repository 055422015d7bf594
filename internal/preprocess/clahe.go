package preprocess

import (
	"image"
	"math"
)

// CLAHE performs contrast-limited adaptive histogram equalization. The grid
// is divided into tiles x tiles regions, each region gets a clipped,
// equalized intensity mapping, and per-pixel output is bilinearly
// interpolated between the four surrounding region mappings to avoid tile
// seams. clipLimit is relative to a uniform histogram (2.0 means a bin may
// hold at most twice the uniform share); excess mass is redistributed.
func CLAHE(src *image.Gray, clipLimit float64, tiles int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	if tiles < 1 {
		tiles = 1
	}
	if tiles > w {
		tiles = w
	}
	if tiles > h {
		tiles = h
	}
	if clipLimit < 1 {
		clipLimit = 1
	}

	tileW := (w + tiles - 1) / tiles
	tileH := (h + tiles - 1) / tiles

	// Per-tile clipped equalization mappings.
	luts := make([][256]uint8, tiles*tiles)
	for ty := 0; ty < tiles; ty++ {
		for tx := 0; tx < tiles; tx++ {
			x0 := tx * tileW
			y0 := ty * tileH
			x1 := min(x0+tileW, w)
			y1 := min(y0+tileH, h)
			luts[ty*tiles+tx] = tileLUT(src, b, x0, y0, x1, y1, clipLimit)
		}
	}

	// Bilinear interpolation between neighboring tile mappings.
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := ty0 + 1
		ty0 = clampTile(ty0, tiles)
		ty1 = clampTile(ty1, tiles)

		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := dst.PixOffset(0, y)
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := tx0 + 1
			tx0 = clampTile(tx0, tiles)
			tx1 = clampTile(tx1, tiles)

			v := src.Pix[si+x]
			top := (1-wx)*float64(luts[ty0*tiles+tx0][v]) + wx*float64(luts[ty0*tiles+tx1][v])
			bot := (1-wx)*float64(luts[ty1*tiles+tx0][v]) + wx*float64(luts[ty1*tiles+tx1][v])
			dst.Pix[di+x] = uint8(math.Round((1-wy)*top + wy*bot))
		}
	}
	return dst
}

func clampTile(t, tiles int) int {
	if t < 0 {
		return 0
	}
	if t >= tiles {
		return tiles - 1
	}
	return t
}

// tileLUT builds the clipped, equalized mapping for one tile region.
func tileLUT(src *image.Gray, b image.Rectangle, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		for x := x0; x < x1; x++ {
			hist[src.Pix[si+x]]++
		}
	}
	total := (x1 - x0) * (y1 - y0)
	var lut [256]uint8
	if total == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	// Clip and redistribute excess uniformly.
	clip := int(clipLimit * float64(total) / 256.0)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i, n := range hist {
		if n > clip {
			excess += n - clip
			hist[i] = clip
		}
	}
	share := excess / 256
	rem := excess % 256
	for i := range hist {
		hist[i] += share
		if i < rem {
			hist[i]++
		}
	}

	cdf := 0
	for i, n := range hist {
		cdf += n
		lut[i] = uint8(math.Round(255.0 * float64(cdf) / float64(total)))
	}
	return lut
}
