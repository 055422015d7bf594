package cascade

import (
	"image"
	"math"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// DefaultPadding is the quiet-zone margin added around an extracted code
// region so it stays re-decodable.
const DefaultPadding = 10

// Region is an independently owned crop of the original image plus its
// bounding box in original-image coordinates.
type Region struct {
	Image image.Image
	Box   image.Rectangle
}

// ExtractRegion crops the padded bounding box of the corner set out of
// img. It requires at least four corners; fewer cannot describe a usable
// bounding box and yield ok=false. The padded box is clamped to the image
// so padding never pushes it out of bounds, and clamping uses the already
// adjusted origin so dimensions stay non-negative. The returned pixels are
// a copy; releasing the source image is safe.
func ExtractRegion(img image.Image, corners []utils.Point, padding int) (Region, bool) {
	if len(corners) < 4 {
		return Region{}, false
	}
	if padding < 0 {
		padding = 0
	}
	b := img.Bounds()
	imgW, imgH := b.Dx(), b.Dy()

	box := utils.BoundingBox(corners)
	x := int(math.Floor(box.MinX))
	y := int(math.Floor(box.MinY))
	w := int(math.Ceil(box.MaxX)) - x
	h := int(math.Ceil(box.MaxY)) - y

	x = max(0, x-padding)
	y = max(0, y-padding)
	w = min(imgW-x, w+2*padding)
	h = min(imgH-y, h+2*padding)
	if w <= 0 || h <= 0 {
		return Region{}, false
	}

	rect := image.Rect(x, y, x+w, y+h)
	return Region{
		Image: utils.CropImageRect(img, rect.Add(b.Min)),
		Box:   rect,
	}, true
}
