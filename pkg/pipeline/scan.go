package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/thumbatlas/pkg/atlas"
	"github.com/matzehuels/thumbatlas/pkg/status"
	"github.com/matzehuels/thumbatlas/pkg/workpool"
)

// Scan lists opts.ImagesDir and probes every allowed file, reporting
// progress from 10 to 30.
func (r *Runner) Scan(ctx context.Context, opts Options, sink status.Sink) (*atlas.Inventory, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForScan(); err != nil {
		return nil, err
	}

	scanner := &atlas.Scanner{
		Extensions: opts.Extensions,
		Cache:      r.Cache,
		Keyer:      r.Keyer,
		Logger:     opts.Logger,
		Progress:   dimensionProgress(ctx, sink),
	}

	sink.Report(ctx, status.PhaseScan, 10, "Scanning image directory...")
	names, err := scanner.List(opts.ImagesDir)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("listed images", "dir", opts.ImagesDir, "files", len(names))

	pool, err := workpool.New(opts.ScanWorkers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()
	scanner.Pool = pool

	sink.Report(ctx, status.PhaseDimensions, 15, fmt.Sprintf("Reading dimensions of %d images...", len(names)))
	return scanner.Probe(ctx, opts.ImagesDir, names)
}

// dimensionProgress reports 15-30 at every tenth of the files.
func dimensionProgress(ctx context.Context, sink status.Sink) atlas.ProgressFunc {
	return func(done, total int) {
		step := max(1, total/10)
		if done%step != 0 && done != total {
			return
		}
		sink.Report(ctx, status.PhaseDimensions, 15+15*done/total,
			fmt.Sprintf("Reading image dimensions (%d/%d)...", done, total))
	}
}
