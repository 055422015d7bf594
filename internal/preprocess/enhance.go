package preprocess

import (
	"image"
	"math"
)

// Gamma applies a per-pixel gamma lookup: out = 255 * (in/255)^gamma.
// Values below 1.0 brighten shadows; values above 1.0 darken highlights.
func Gamma(src *image.Gray, gamma float64) *image.Gray {
	if gamma <= 0 {
		gamma = 1
	}
	var lut [256]uint8
	for i := range lut {
		v := 255.0 * math.Pow(float64(i)/255.0, gamma)
		lut[i] = uint8(math.Round(math.Min(255, math.Max(0, v))))
	}
	return applyLUT(src, &lut)
}

// EqualizeHist performs global histogram equalization, stretching the
// intensity distribution across the full range.
func EqualizeHist(src *image.Gray) *image.Gray {
	hist, total := histogram(src)
	if total == 0 {
		return CloneGray(src)
	}

	// First non-empty bin anchors the mapping so the darkest present
	// intensity maps to 0.
	cdf := 0
	cdfMin := 0
	for _, n := range hist {
		if n > 0 {
			cdfMin = n
			break
		}
	}
	denom := total - cdfMin
	var lut [256]uint8
	for i, n := range hist {
		cdf += n
		if denom <= 0 {
			lut[i] = uint8(i)
			continue
		}
		v := math.Round(255.0 * float64(cdf-cdfMin) / float64(denom))
		lut[i] = uint8(math.Min(255, math.Max(0, v)))
	}
	return applyLUT(src, &lut)
}
