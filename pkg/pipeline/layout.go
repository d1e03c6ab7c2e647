package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/thumbatlas/pkg/atlas"
	"github.com/matzehuels/thumbatlas/pkg/status"
)

// Layout is the placed rectangle set for an inventory.
type Layout struct {
	Rects        []atlas.Rect
	DimensionCap int
	Width        int
	Height       int
	Correction   atlas.Correction
	Fill         float64
}

// GenerateLayout normalizes, packs and corrects the images, reporting
// progress 35 and 40. Packing and correction run on the calling goroutine.
func GenerateLayout(ctx context.Context, images []atlas.SourceImage, opts Options, sink status.Sink) (*Layout, error) {
	if err := opts.ValidateForScan(); err != nil {
		return nil, err
	}

	sink.Report(ctx, status.PhaseNormalize, 35, "Normalizing image dimensions...")
	rects, limit := atlas.Normalize(images, opts.Limits, opts.CapFraction)
	resized := 0
	for _, rc := range rects {
		if rc.NeedsResize {
			resized++
		}
	}
	opts.Logger.Debug("normalized dimensions", "cap", limit, "resized", resized, "images", len(rects))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sink.Report(ctx, status.PhasePack, 40, fmt.Sprintf("Packing %d images...", len(rects)))
	packing, err := atlas.Packer{MaxWidth: opts.Limits.MaxWidth}.Pack(rects)
	if err != nil {
		return nil, err
	}
	placed, correction, err := atlas.Correct(packing, opts.Limits)
	if err != nil {
		return nil, err
	}
	if correction.Applied {
		opts.Logger.Warn("atlas exceeded limits, scaled down",
			"packed", fmt.Sprintf("%dx%d", packing.UsedWidth, packing.Height),
			"scale", correction.Scale)
	}

	return &Layout{
		Rects:        placed,
		DimensionCap: limit,
		Width:        correction.Width,
		Height:       correction.Height,
		Correction:   correction,
		Fill:         packing.Fill(),
	}, nil
}
