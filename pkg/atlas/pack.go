package atlas

import (
	"slices"
	"sort"

	"github.com/matzehuels/thumbatlas/pkg/errors"
)

// Packer places rectangles into a single bin of fixed width and unbounded
// height. The zero value is unusable; MaxWidth must be positive.
type Packer struct {
	MaxWidth int
}

// Packing is the outcome of [Packer.Pack].
type Packing struct {
	// Rects holds the input rectangles with X and Y assigned, in input order.
	Rects []Rect

	// BinWidth is the fixed bin width. UsedWidth is the right-most edge of
	// any placement and Height the bottom-most edge.
	BinWidth  int
	UsedWidth int
	Height    int

	// Bins is the number of bins used: 1, or 0 for empty input.
	Bins int
}

// Fill returns the share of the used area covered by rectangles.
func (p *Packing) Fill() float64 {
	if p.UsedWidth == 0 || p.Height == 0 {
		return 0
	}
	var area int64
	for _, r := range p.Rects {
		area += int64(r.W) * int64(r.H)
	}
	return float64(area) / (float64(p.UsedWidth) * float64(p.Height))
}

// Pack assigns an offset to every rectangle.
//
// Rectangles are placed tallest first, then widest, then in input order.
// Each goes into the narrowest free rectangle that can hold it, with ties
// broken by smaller y and then smaller x. When nothing fits, a strip as tall
// as the item is opened across the full width at the bottom of the bin.
//
// Pack fails with UNPACKABLE_RECTANGLE if a rectangle has a non-positive
// size or is wider than the bin.
func (p Packer) Pack(rects []Rect) (*Packing, error) {
	if p.MaxWidth <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "bin width must be positive, got %d", p.MaxWidth)
	}
	for _, r := range rects {
		if r.W <= 0 || r.H <= 0 {
			return nil, errors.New(errors.ErrCodeUnpackableRectangle, "%s has size %dx%d", r.ID, r.W, r.H)
		}
		if r.W > p.MaxWidth {
			return nil, errors.New(errors.ErrCodeUnpackableRectangle, "%s is %d px wide, bin width is %d", r.ID, r.W, p.MaxWidth)
		}
	}

	out := &Packing{Rects: slices.Clone(rects), BinWidth: p.MaxWidth}
	if len(rects) == 0 {
		return out, nil
	}
	out.Bins = 1

	order := make([]int, len(rects))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rects[order[a]], rects[order[b]]
		if ra.H != rb.H {
			return ra.H > rb.H
		}
		if ra.W != rb.W {
			return ra.W > rb.W
		}
		return order[a] < order[b]
	})

	b := &bin{width: p.MaxWidth}
	for _, i := range order {
		r := &out.Rects[i]
		r.X, r.Y = b.place(r.W, r.H)
		out.UsedWidth = max(out.UsedWidth, r.X+r.W)
	}
	out.Height = b.height
	return out, nil
}

// freeRect is an unused region of the bin.
type freeRect struct {
	x, y, w, h int
}

// bin tracks free space as disjoint rectangles kept sorted by (w, y, x), so
// the first fit in order is the best fit by width.
type bin struct {
	width  int
	height int
	free   []freeRect
}

func freeLess(a, b freeRect) bool {
	if a.w != b.w {
		return a.w < b.w
	}
	if a.y != b.y {
		return a.y < b.y
	}
	return a.x < b.x
}

// place reserves a w×h region and returns its offset.
func (b *bin) place(w, h int) (x, y int) {
	idx := -1
	start := sort.Search(len(b.free), func(i int) bool { return b.free[i].w >= w })
	for i := start; i < len(b.free); i++ {
		if b.free[i].h >= h {
			idx = i
			break
		}
	}

	var f freeRect
	if idx >= 0 {
		f = b.free[idx]
		b.free = slices.Delete(b.free, idx, idx+1)
	} else {
		f = freeRect{x: 0, y: b.height, w: b.width, h: h}
	}

	b.insert(freeRect{x: f.x + w, y: f.y, w: f.w - w, h: h})
	b.insert(freeRect{x: f.x, y: f.y + h, w: f.w, h: f.h - h})
	b.height = max(b.height, f.y+h)
	return f.x, f.y
}

func (b *bin) insert(f freeRect) {
	if f.w <= 0 || f.h <= 0 {
		return
	}
	i := sort.Search(len(b.free), func(i int) bool { return !freeLess(b.free[i], f) })
	b.free = slices.Insert(b.free, i, f)
}
