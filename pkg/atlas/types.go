package atlas

import (
	"image"
	"math"
)

// Default atlas limits. 8192 is the common maximum texture size; the pixel
// budget equals a full 8192×8192 texture.
const (
	DefaultMaxDimension = 8192
	DefaultMaxPixels    = int64(DefaultMaxDimension) * DefaultMaxDimension
	DefaultCapFraction  = 0.8
)

// SourceImage is a file that passed the header probe.
type SourceImage struct {
	ID     string // filename, unique within a directory
	Path   string // absolute path
	Width  int
	Height int
}

// Rect is an image on its way through normalization, packing and
// correction. Offset and size always describe the same rectangle: stages
// that change one rewrite both.
type Rect struct {
	ID   string
	Path string

	// OriginalW and OriginalH are the native dimensions from the header.
	OriginalW int
	OriginalH int

	// W and H are the working dimensions in atlas pixels.
	W int
	H int

	// X and Y are the top-left offset in the atlas, set by the packer.
	X int
	Y int

	// NeedsResize is true when the working size differs from the native size.
	NeedsResize bool
}

// Bounds returns the rectangle in atlas space.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Overlaps reports whether r and o share at least one pixel.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// ScaleFactor is the effective downscale applied to the image, working width
// over native width.
func (r Rect) ScaleFactor() float64 {
	if r.OriginalW <= 0 {
		return 1
	}
	return float64(r.W) / float64(r.OriginalW)
}

// Limits bounds the final atlas.
type Limits struct {
	MaxWidth  int
	MaxHeight int
	MaxPixels int64 // 0 means MaxWidth × MaxHeight
}

// DefaultLimits returns the standard 8192×8192 limits.
func DefaultLimits() Limits {
	return Limits{
		MaxWidth:  DefaultMaxDimension,
		MaxHeight: DefaultMaxDimension,
		MaxPixels: DefaultMaxPixels,
	}
}

func (l Limits) maxPixels() int64 {
	if l.MaxPixels > 0 {
		return l.MaxPixels
	}
	return int64(l.MaxWidth) * int64(l.MaxHeight)
}

// maxSide is the largest square side permitted by every limit.
func (l Limits) maxSide() float64 {
	side := math.Min(float64(l.MaxWidth), float64(l.MaxHeight))
	return math.Min(side, math.Sqrt(float64(l.maxPixels())))
}

// Fits reports whether a width×height atlas satisfies every limit.
func (l Limits) Fits(width, height int) bool {
	return width > 0 && height > 0 &&
		width <= l.MaxWidth && height <= l.MaxHeight &&
		int64(width)*int64(height) <= l.maxPixels()
}

// Drop records an image that was excluded from the atlas.
type Drop struct {
	ID   string
	Path string
	Err  error
}
