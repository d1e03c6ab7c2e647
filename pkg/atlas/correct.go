package atlas

import (
	"math"
	"slices"

	"github.com/matzehuels/thumbatlas/pkg/errors"
)

// Correction describes the uniform scale applied after packing.
type Correction struct {
	Scale   float64 // 1 when no correction was needed
	Applied bool
	Width   int // final atlas width
	Height  int // final atlas height
}

// Correct fits a packed layout into lim.
//
// If the layout already fits, rectangles are returned unchanged. Otherwise a
// single factor
//
//	s = min(maxW/w, maxH/h, √(maxPixels/(w×h)))
//
// scales every rectangle. Offsets are floored and sizes rounded with a
// minimum of one pixel, then clamped to the canvas. Rounding may leave a
// one-pixel seam or overlap between neighbours; no rectangle is dropped for
// it. NeedsResize is re-derived from the native size.
//
// Correct fails with ATLAS_TOO_LARGE when the scale is not in (0, 1), when
// the scaled canvas has a non-positive side, or when the result still
// exceeds lim.
func Correct(p *Packing, lim Limits) ([]Rect, Correction, error) {
	w, h := p.UsedWidth, p.Height
	if len(p.Rects) == 0 || w <= 0 || h <= 0 {
		return nil, Correction{}, errors.New(errors.ErrCodeAtlasTooLarge, "nothing to place")
	}

	c := Correction{Scale: 1, Width: w, Height: h}
	if lim.Fits(w, h) {
		return slices.Clone(p.Rects), c, nil
	}

	s := math.Min(float64(lim.MaxWidth)/float64(w), float64(lim.MaxHeight)/float64(h))
	if area := float64(w) * float64(h); area > float64(lim.maxPixels()) {
		s = math.Min(s, math.Sqrt(float64(lim.maxPixels())/area))
	}
	if s <= 0 || s >= 1 {
		return nil, c, errors.New(errors.ErrCodeAtlasTooLarge, "%dx%d atlas cannot be scaled into %dx%d", w, h, lim.MaxWidth, lim.MaxHeight)
	}

	c.Scale, c.Applied = s, true
	c.Width, c.Height = scaleEdge(w, s), scaleEdge(h, s)
	if c.Width < 1 || c.Height < 1 {
		return nil, c, errors.New(errors.ErrCodeAtlasTooLarge,
			"%dx%d atlas collapses to %dx%d at scale %.4f", w, h, c.Width, c.Height, s)
	}

	out := make([]Rect, len(p.Rects))
	for i, r := range p.Rects {
		r.X, r.W = scaleSpan(r.X, r.W, s, c.Width)
		r.Y, r.H = scaleSpan(r.Y, r.H, s, c.Height)
		r.NeedsResize = r.W != r.OriginalW || r.H != r.OriginalH
		out[i] = r
	}

	if !lim.Fits(c.Width, c.Height) {
		return nil, c, errors.New(errors.ErrCodeAtlasTooLarge,
			"corrected atlas %dx%d exceeds %dx%d", c.Width, c.Height, lim.MaxWidth, lim.MaxHeight)
	}
	return out, c, nil
}

func scaleEdge(v int, s float64) int {
	return int(math.Floor(float64(v) * s))
}

// scaleSpan scales an offset and a length along one axis of a canvas of the
// given extent. The length is at least 1 and the span stays on the canvas.
func scaleSpan(off, length int, s float64, extent int) (int, int) {
	n := min(max(1, int(math.Round(float64(length)*s))), extent)
	return min(scaleEdge(off, s), extent-n), n
}
