// Package cascade implements the detection fallback cascade: a fixed,
// ordered sequence of preprocessing variants, each re-submitted to the
// detector until one yields a decoded payload. Clean images cost exactly
// one detector call; hard images pay for the full list. The variant list
// is literal data, so two runs over byte-identical input always take the
// same path.
package cascade

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/qrscan/internal/detect"
	"github.com/MeKo-Tech/qrscan/internal/preprocess"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// smallSideThreshold gates the 2x upscale variant: images whose smaller
// dimension already exceeds it gain nothing from upscaling.
const smallSideThreshold = 800

// Variant describes one cascade step: a named transform over the shared
// grayscale grid plus the resize factor it applies, used to map detected
// corners back to original coordinates.
type Variant struct {
	Name  string
	Scale float64
	Apply func(*image.Gray) image.Image
}

// Outcome is the terminal result of one cascade run. Detected with an
// empty Payload means a code was located but never decoded. Variant names
// the step that produced the result ("" for the baseline attempt) and
// Attempts counts detector submissions.
type Outcome struct {
	Detected bool
	Payload  string
	Corners  []utils.Point
	Variant  string
	Attempts int
}

// MultiOutcome is the result of the multi-code entry point. The cascade
// locates at most one symbol, so Count is always 0 or 1.
type MultiOutcome struct {
	Detected bool
	Count    int
	Codes    []Outcome
}

// Progress observes cascade execution; it is invoked before each detector
// submission with the 0-based step, the total step count, and the variant
// name ("baseline" for step 0).
type Progress func(step, total int, variant string)

// Controller orchestrates the cascade over an injected detector. It holds
// no per-call state; one value may serve concurrent calls.
type Controller struct {
	det      detect.Detector
	progress Progress
}

// Option configures a Controller.
type Option func(*Controller)

// WithProgress attaches a progress observer.
func WithProgress(p Progress) Option {
	return func(c *Controller) { c.progress = p }
}

// New builds a Controller around the given detector.
func New(det detect.Detector, opts ...Option) *Controller {
	c := &Controller{det: det}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// variantList builds the ordered cascade for an image of the given
// dimensions. Cheap, broadly effective transforms run before expensive or
// narrow ones. Multi-parameter steps are flattened in their stated order
// so the whole cascade is a single loop over literal data.
func variantList(w, h int) []Variant {
	vs := make([]Variant, 0, 16)

	vs = append(vs, Variant{Name: "clahe", Scale: 1, Apply: func(g *image.Gray) image.Image {
		return preprocess.CLAHE(g, 2.0, 8)
	}})

	for _, bs := range [...]int{11, 25, 51} {
		block := bs
		vs = append(vs, Variant{Name: fmt.Sprintf("adaptive_threshold_b%d", block), Scale: 1,
			Apply: func(g *image.Gray) image.Image {
				return preprocess.AdaptiveThreshold(g, block, 2)
			}})
	}

	vs = append(vs,
		Variant{Name: "otsu", Scale: 1, Apply: func(g *image.Gray) image.Image {
			return preprocess.OtsuThreshold(g, false)
		}},
		Variant{Name: "otsu_inverted", Scale: 1, Apply: func(g *image.Gray) image.Image {
			return preprocess.OtsuThreshold(g, true)
		}},
		Variant{Name: "bilateral_adaptive", Scale: 1, Apply: func(g *image.Gray) image.Image {
			return preprocess.AdaptiveThreshold(preprocess.Bilateral(g, 9, 75, 75), 25, 2)
		}},
		Variant{Name: "otsu_close", Scale: 1, Apply: func(g *image.Gray) image.Image {
			return preprocess.MorphClose(preprocess.OtsuThreshold(g, false), 3)
		}},
		Variant{Name: "sharpen", Scale: 1, Apply: func(g *image.Gray) image.Image {
			return preprocess.Sharpen(g)
		}},
	)

	if w < smallSideThreshold || h < smallSideThreshold {
		vs = append(vs, Variant{Name: "upscale_2x", Scale: 2, Apply: func(g *image.Gray) image.Image {
			return preprocess.Upscale(g, 2)
		}})
	}

	for _, gm := range [...]float64{0.5, 0.7, 1.5, 2.2} {
		gamma := gm
		vs = append(vs, Variant{Name: fmt.Sprintf("gamma_%.1f", gamma), Scale: 1,
			Apply: func(g *image.Gray) image.Image {
				return preprocess.Gamma(g, gamma)
			}})
	}

	vs = append(vs,
		Variant{Name: "equalize", Scale: 1, Apply: func(g *image.Gray) image.Image {
			return preprocess.EqualizeHist(g)
		}},
		Variant{Name: "clahe_bilateral_adaptive", Scale: 1, Apply: func(g *image.Gray) image.Image {
			return preprocess.AdaptiveThreshold(preprocess.Bilateral(preprocess.CLAHE(g, 2.0, 8), 9, 75, 75), 25, 2)
		}},
		Variant{Name: "upscale_clahe", Scale: 1.5, Apply: func(g *image.Gray) image.Image {
			return preprocess.CLAHE(preprocess.Upscale(g, 1.5), 2.0, 8)
		}},
	)

	return vs
}

// Run executes the full detect+decode cascade against img. The original
// image is never mutated; every variant works on its own grid. A variant
// that finds nothing is control flow, not failure. Only a failing
// primitive returns an error, which aborts the remaining cascade.
func (c *Controller) Run(img image.Image) (Outcome, error) {
	b := img.Bounds()
	vars := variantList(b.Dx(), b.Dy())
	total := len(vars) + 1

	c.report(0, total, "baseline")
	baseline, err := c.det.LocateAndDecode(img)
	if err != nil {
		return Outcome{}, fmt.Errorf("baseline detection: %w", err)
	}
	if baseline.Payload != "" {
		return Outcome{
			Detected: true,
			Payload:  baseline.Payload,
			Corners:  baseline.Corners,
			Attempts: 1,
		}, nil
	}

	// Keep whichever step located corners first, in case nothing decodes.
	var located []utils.Point
	locatedScale := 1.0
	locatedVariant := ""
	if baseline.Found && len(baseline.Corners) > 0 {
		located = baseline.Corners
	}

	gray := preprocess.ToGray(img)
	attempts := 1
	for i, v := range vars {
		c.report(i+1, total, v.Name)
		slog.Debug("cascade variant", "name", v.Name, "step", i+1, "total", total)

		attempt, err := c.det.LocateAndDecode(v.Apply(gray))
		attempts++
		if err != nil {
			return Outcome{}, fmt.Errorf("variant %s: %w", v.Name, err)
		}
		if attempt.Payload != "" {
			return Outcome{
				Detected: true,
				Payload:  attempt.Payload,
				Corners:  descale(attempt.Corners, v.Scale),
				Variant:  v.Name,
				Attempts: attempts,
			}, nil
		}
		if located == nil && attempt.Found && len(attempt.Corners) > 0 {
			located = attempt.Corners
			locatedScale = v.Scale
			locatedVariant = v.Name
		}
	}

	if located != nil {
		return Outcome{
			Detected: true,
			Corners:  descale(located, locatedScale),
			Variant:  locatedVariant,
			Attempts: attempts,
		}, nil
	}
	return Outcome{Attempts: attempts}, nil
}

// RunMulti is the multi-code entry point. It shares the single cascade
// implementation with Run, so it degrades to at most one result; the
// count-of-one contract is deliberate and documented rather than silently
// widened.
func (c *Controller) RunMulti(img image.Image) (MultiOutcome, error) {
	out, err := c.Run(img)
	if err != nil {
		return MultiOutcome{}, err
	}
	if !out.Detected {
		return MultiOutcome{Codes: []Outcome{}}, nil
	}
	return MultiOutcome{Detected: true, Count: 1, Codes: []Outcome{out}}, nil
}

// HasCode answers located/not-located with a single locate call. It never
// decodes and never runs preprocessing variants.
func (c *Controller) HasCode(img image.Image) (bool, []utils.Point, error) {
	corners, err := c.det.Locate(img)
	if err != nil {
		return false, nil, fmt.Errorf("locate: %w", err)
	}
	return len(corners) > 0, corners, nil
}

func (c *Controller) report(step, total int, name string) {
	if c.progress != nil {
		c.progress(step, total, name)
	}
}

// descale maps corners from a scale-s variant back to original-image
// coordinates.
func descale(pts []utils.Point, scale float64) []utils.Point {
	if scale == 1 || len(pts) == 0 {
		return pts
	}
	return utils.ScalePoints(pts, 1/scale)
}
