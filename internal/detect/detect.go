// Package detect wraps the single-shot QR locate/decode primitive behind a
// small interface so the cascade can be driven by test doubles. The
// default backend is gozxing's QR reader. Backends hold no state and do no
// retrying of their own; fallback logic lives entirely in the cascade.
package detect

import (
	"image"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Attempt is the result of one detector invocation. Found with an empty
// Payload means the symbol was located but could not be decoded.
type Attempt struct {
	Found   bool
	Corners []utils.Point
	Payload string
}

// Detector is a pure, stateless locate/decode capability.
type Detector interface {
	// Locate finds the corner points of a QR code without decoding.
	// An image without a code yields an empty slice and a nil error.
	Locate(img image.Image) ([]utils.Point, error)

	// LocateAndDecode additionally attempts payload extraction.
	// "Not found" and "found but undecodable" are results, not errors;
	// only a failing primitive returns a non-nil error.
	LocateAndDecode(img image.Image) (Attempt, error)
}
