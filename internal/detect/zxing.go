package detect

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	qrdetector "github.com/makiuchi-d/gozxing/qrcode/detector"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// ZXing is the gozxing-backed QR detector.
type ZXing struct {
	tryHarder bool
}

// NewZXing returns a detector backed by gozxing's QR reader with
// exhaustive search enabled.
func NewZXing() *ZXing {
	return &ZXing{tryHarder: true}
}

var _ Detector = (*ZXing)(nil)

func (z *ZXing) hints() map[gozxing.DecodeHintType]interface{} {
	if !z.tryHarder {
		return nil
	}
	return map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
}

// Locate finds QR finder-pattern corner points without decoding.
func (z *ZXing) Locate(img image.Image) ([]utils.Point, error) {
	bmp, err := binaryBitmap(img)
	if err != nil {
		return nil, err
	}
	matrix, err := bmp.GetBlackMatrix()
	if err != nil {
		return nil, fmt.Errorf("binarize image: %w", err)
	}
	res, err := qrdetector.NewDetector(matrix).Detect(z.hints())
	if err != nil {
		if isReaderMiss(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("locate qr code: %w", err)
	}
	return resultPoints(res.GetPoints()), nil
}

// LocateAndDecode runs the full detect+decode primitive once.
func (z *ZXing) LocateAndDecode(img image.Image) (Attempt, error) {
	bmp, err := binaryBitmap(img)
	if err != nil {
		return Attempt{}, err
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, z.hints())
	if err == nil {
		return Attempt{
			Found:   true,
			Corners: resultPoints(result.GetResultPoints()),
			Payload: result.GetText(),
		}, nil
	}

	var nfe gozxing.NotFoundException
	if errors.As(err, &nfe) {
		return Attempt{}, nil
	}
	if isReaderMiss(err) {
		// Format or checksum failure: the symbol was located but its
		// payload is unreadable. Recover the corner points.
		corners, lerr := z.Locate(img)
		if lerr != nil {
			return Attempt{}, lerr
		}
		return Attempt{Found: len(corners) > 0, Corners: corners}, nil
	}
	return Attempt{}, fmt.Errorf("decode qr code: %w", err)
}

func binaryBitmap(img image.Image) (*gozxing.BinaryBitmap, error) {
	source := gozxing.NewLuminanceSourceFromImage(img)
	bmp, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return nil, fmt.Errorf("build binary bitmap: %w", err)
	}
	return bmp, nil
}

// isReaderMiss reports whether err is one of gozxing's reader exceptions,
// which signal "no readable code here" rather than a primitive failure.
func isReaderMiss(err error) bool {
	var re gozxing.ReaderException
	return errors.As(err, &re)
}

func resultPoints(pts []gozxing.ResultPoint) []utils.Point {
	if len(pts) == 0 {
		return nil
	}
	out := make([]utils.Point, 0, len(pts))
	for _, p := range pts {
		if p == nil {
			continue
		}
		out = append(out, utils.Point{X: p.GetX(), Y: p.GetY()})
	}
	return out
}
