package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/thumbatlas/pkg/atlas"
	pkgio "github.com/matzehuels/thumbatlas/pkg/io"
	"github.com/matzehuels/thumbatlas/pkg/status"
	"github.com/matzehuels/thumbatlas/pkg/workpool"
)

// Rendered is the outcome of the render stage.
type Rendered struct {
	Coordinates atlas.CoordinateMap
	Composited  int
	Dropped     []atlas.Drop
}

// Render composites the layout and persists both artifacts, reporting
// progress 45 to 95. Both artifacts are written in full before either is
// moved into place, and the map lists only images that were drawn.
func Render(ctx context.Context, l *Layout, opts Options, sink status.Sink) (*Rendered, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	pool, err := workpool.New(opts.CompositeWorkers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	sink.Report(ctx, status.PhaseCanvas, 45, fmt.Sprintf("Creating %dx%d canvas...", l.Width, l.Height))
	compositor := &atlas.Compositor{
		Pool:     pool,
		Logger:   opts.Logger,
		Progress: compositeProgress(ctx, sink),
	}
	composite, err := compositor.Compose(ctx, l.Rects, l.Width, l.Height)
	if err != nil {
		return nil, err
	}

	sink.Report(ctx, status.PhaseEncode, 90, "Encoding atlas image...")
	atlasImage, err := pkgio.StagePNG(composite.Image, opts.AtlasPath, opts.Compression)
	if err != nil {
		return nil, err
	}
	defer atlasImage.Discard()

	sink.Report(ctx, status.PhaseSave, 95, "Saving coordinate map...")
	coords := atlas.BuildCoordinateMap(composite.Placed)
	coordMap, err := pkgio.StageJSON(coords, opts.CoordinatesPath)
	if err != nil {
		return nil, err
	}
	defer coordMap.Discard()

	if err := pkgio.Commit(atlasImage, coordMap); err != nil {
		return nil, err
	}

	return &Rendered{
		Coordinates: coords,
		Composited:  len(composite.Placed),
		Dropped:     composite.Dropped,
	}, nil
}

// compositeProgress reports 50-90 after every CompositeBatch images.
func compositeProgress(ctx context.Context, sink status.Sink) atlas.ProgressFunc {
	return func(done, total int) {
		if done%CompositeBatch != 0 && done != total {
			return
		}
		sink.Report(ctx, status.PhaseComposite, 50+40*done/total,
			fmt.Sprintf("Compositing images (%d/%d)...", done, total))
	}
}
