package atlas

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/matzehuels/thumbatlas/pkg/errors"
	"github.com/matzehuels/thumbatlas/pkg/observability"
	"github.com/matzehuels/thumbatlas/pkg/workpool"
)

// Compositor draws placed rectangles onto an atlas canvas.
type Compositor struct {
	// Pool bounds concurrent decodes. Required.
	Pool *workpool.Pool

	Logger *log.Logger

	// Progress, if set, is called as images finish, whether drawn or dropped.
	Progress ProgressFunc
}

// Composite is the drawn atlas.
type Composite struct {
	Image *image.NRGBA

	// Placed holds the rectangles that were drawn, in input order.
	Placed []Rect

	// Dropped holds images that failed to decode or resize.
	Dropped []Drop
}

// Compose creates a transparent width×height canvas and draws every rect at
// its offset, replacing the destination pixels.
//
// Sources are resized with a Lanczos filter when NeedsResize is set or the
// decoded size differs from the working size. A source that fails is logged,
// reported with COMPOSITE_FAILURE in Dropped and left out; the canvas keeps
// its transparent pixels there. Compose returns an error only for invalid
// dimensions or a cancelled ctx.
func (c *Compositor) Compose(ctx context.Context, rects []Rect, width, height int) (*Composite, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "canvas size %dx%d", width, height)
	}
	bounds := image.Rect(0, 0, width, height)
	for _, r := range rects {
		if !r.Bounds().In(bounds) || r.W <= 0 || r.H <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "%s at %v is outside the %dx%d canvas", r.ID, r.Bounds(), width, height)
		}
	}

	logger := c.Logger
	if logger == nil {
		logger = discardLogger
	}

	canvas := imaging.New(width, height, color.NRGBA{})
	var mu sync.Mutex
	progress := serialProgress(c.Progress, len(rects))

	report, err := c.Pool.Run(ctx, len(rects), func(ctx context.Context, i int) error {
		defer progress()
		r := rects[i]

		src, err := loadScaled(r)
		if err != nil {
			return err
		}

		mu.Lock()
		xdraw.Draw(canvas, r.Bounds(), src, src.Bounds().Min, xdraw.Src)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &Composite{Image: canvas}
	failed := make(map[int]error, len(report.Failures))
	for _, f := range report.Failures {
		failed[f.Index] = f.Err
	}
	for i, r := range rects {
		if ferr, ok := failed[i]; ok {
			ferr = errors.Wrap(errors.ErrCodeCompositeFailure, ferr, "composite %s", r.ID)
			logger.Warn("skipping image", "id", r.ID, "path", r.Path, "err", ferr)
			observability.Pipeline().OnImageDropped(ctx, r.ID, ferr)
			out.Dropped = append(out.Dropped, Drop{ID: r.ID, Path: r.Path, Err: ferr})
			continue
		}
		out.Placed = append(out.Placed, r)
	}
	return out, nil
}

// loadScaled decodes the source of r at its working size.
func loadScaled(r Rect) (image.Image, error) {
	src, err := imaging.Open(r.Path)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	if r.NeedsResize || b.Dx() != r.W || b.Dy() != r.H {
		src = imaging.Resize(src, r.W, r.H, imaging.Lanczos)
	}
	return src, nil
}
