package atlas

import "math"

// DimensionCap returns the largest side any of n images may keep before
// packing:
//
//	floor(fraction × min(maxDim, √maxPixels) / √n)
//
// The cap is at least 1 and never above lim.MaxWidth. A fraction outside
// (0, 1] falls back to DefaultCapFraction.
func DimensionCap(n int, lim Limits, fraction float64) int {
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultCapFraction
	}
	if n < 1 {
		n = 1
	}
	c := int(math.Floor(fraction * lim.maxSide() / math.Sqrt(float64(n))))
	return max(1, min(c, lim.MaxWidth))
}

// Normalize converts images into rectangles, uniformly shrinking every image
// whose larger side exceeds the dimension cap. The returned slice is in
// input order; the cap is returned for reporting.
func Normalize(images []SourceImage, lim Limits, fraction float64) ([]Rect, int) {
	limit := DimensionCap(len(images), lim, fraction)
	rects := make([]Rect, len(images))
	for i, img := range images {
		r := Rect{
			ID:        img.ID,
			Path:      img.Path,
			OriginalW: img.Width,
			OriginalH: img.Height,
			W:         img.Width,
			H:         img.Height,
		}
		if larger := max(img.Width, img.Height); larger > limit {
			r.W = scaleDown(img.Width, limit, larger)
			r.H = scaleDown(img.Height, limit, larger)
			r.NeedsResize = true
		}
		rects[i] = r
	}
	return rects, limit
}

// scaleDown returns floor(v × num / den), at least 1, in integer arithmetic
// so the larger side lands exactly on the cap.
func scaleDown(v, num, den int) int {
	return max(1, int(int64(v)*int64(num)/int64(den)))
}
