// Package pipeline runs atlas generation for thumbatlas.
//
// This package implements the complete scan → layout → render pipeline used
// by both the CLI and the HTTP server. Centralizing it keeps status
// reporting, run history and error handling identical across entry points.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Scan: list the image directory and probe dimensions from headers
//  2. Layout: normalize sizes, pack rectangles, correct oversize layouts
//  3. Render: composite the atlas, then persist the PNG and coordinate map
//
// Progress flows through a [status.Sink] threaded into every stage, with
// the milestones below. Per-image failures drop the image and are logged;
// stage failures end the run with an error status.
//
//	init 5 · scan 10 · dimensions 15-30 · normalize 35 · pack 40
//	canvas 45 · composite 50-90 · encode 90 · save 95 · complete 100
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, statusStore, nil, logger)
//	opts, err := pipeline.OptionsFromConfig(cfg)
//	if err != nil {
//	    return err
//	}
//	result, err := runner.Execute(ctx, opts)
//
// Or start a run in the background and poll status separately:
//
//	runID, err := runner.Start(ctx, opts)
//
// Plan runs scan and layout only, without writing anything:
//
//	plan, err := runner.Plan(ctx, opts)
package pipeline

import (
	"image/png"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/thumbatlas/pkg/atlas"
	"github.com/matzehuels/thumbatlas/pkg/config"
	"github.com/matzehuels/thumbatlas/pkg/errors"
	pkgio "github.com/matzehuels/thumbatlas/pkg/io"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultScanWorkers bounds concurrent header reads.
	DefaultScanWorkers = config.DefaultScanWorkers

	// DefaultCompositeWorkers bounds concurrent decode and resize work. It is
	// smaller than the scan pool because each task holds a decoded image.
	DefaultCompositeWorkers = config.DefaultCompositeWorkers

	// CompositeBatch is how many composited images pass between progress
	// updates.
	CompositeBatch = 50
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one generation run.
type Options struct {
	// Input
	ImagesDir  string
	Extensions []string // nil means atlas.DefaultExtensions

	// Output
	AtlasPath       string
	CoordinatesPath string
	Compression     png.CompressionLevel

	// Layout
	Limits      atlas.Limits
	CapFraction float64

	// Concurrency
	ScanWorkers      int
	CompositeWorkers int

	// Runtime options
	Logger *log.Logger

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// OptionsFromConfig builds Options from a resolved configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if err := cfg.Resolve(); err != nil {
		return Options{}, err
	}
	level, err := pkgio.ParseCompression(cfg.Atlas.Compression)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		ImagesDir:       cfg.ImagesDir,
		Extensions:      cfg.Atlas.Extensions,
		AtlasPath:       cfg.AtlasImage,
		CoordinatesPath: cfg.CoordinateMap,
		Compression:     level,
		Limits: atlas.Limits{
			MaxWidth:  cfg.Atlas.MaxWidth,
			MaxHeight: cfg.Atlas.MaxHeight,
			MaxPixels: cfg.Atlas.MaxPixels,
		},
		CapFraction:      cfg.Atlas.CapFraction,
		ScanWorkers:      cfg.Workers.Scan,
		CompositeWorkers: cfg.Workers.Composite,
	}
	return opts, opts.ValidateAndSetDefaults()
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForScan(); err != nil {
		return err
	}
	if o.AtlasPath == "" || o.CoordinatesPath == "" {
		return errors.New(errors.ErrCodeInvalidInput, "atlas and coordinate map paths are required")
	}
	if filepath.Clean(o.AtlasPath) == filepath.Clean(o.CoordinatesPath) {
		return errors.New(errors.ErrCodeInvalidInput, "atlas and coordinate map must be different files")
	}
	if o.CompositeWorkers == 0 {
		o.CompositeWorkers = DefaultCompositeWorkers
	}
	if o.CompositeWorkers < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "composite workers must be positive")
	}
	o.validated = true
	return nil
}

// ValidateForScan checks the fields needed to scan and lay out images. Plan
// only needs these.
func (o *Options) ValidateForScan() error {
	if o.ImagesDir == "" {
		return errors.New(errors.ErrCodeInvalidInput, "images directory is required")
	}
	if o.Limits == (atlas.Limits{}) {
		o.Limits = atlas.DefaultLimits()
	}
	if o.Limits.MaxWidth <= 0 || o.Limits.MaxHeight <= 0 || o.Limits.MaxPixels < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "atlas limits must be positive")
	}
	if o.CapFraction == 0 {
		o.CapFraction = atlas.DefaultCapFraction
	}
	if o.CapFraction < 0 || o.CapFraction > 1 {
		return errors.New(errors.ErrCodeInvalidInput, "cap fraction must be in (0, 1], got %g", o.CapFraction)
	}
	if o.ScanWorkers == 0 {
		o.ScanWorkers = DefaultScanWorkers
	}
	if o.ScanWorkers < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "scan workers must be positive")
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of a completed run.
type Result struct {
	RunID string

	AtlasPath       string
	CoordinatesPath string

	// Width and Height are the atlas dimensions.
	Width  int
	Height int

	// DimensionCap is the per-image cap chosen by the normalizer.
	DimensionCap int

	// Correction is the uniform scale applied after packing.
	Correction atlas.Correction

	// Coordinates is the map that was written.
	Coordinates atlas.CoordinateMap

	// Dropped lists every image left out, from scanning and compositing.
	Dropped []atlas.Drop

	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Candidates int // files matching the allow-list
	Readable   int // files with readable dimensions
	Composited int // images drawn into the atlas
	CacheHits  int // probe results served from cache
	Fill       float64

	ScanTime   time.Duration
	LayoutTime time.Duration
	RenderTime time.Duration
}

// Plan is the layout a run would produce, computed without compositing.
type Plan struct {
	Images       int
	Dropped      []atlas.Drop
	DimensionCap int
	Width        int
	Height       int
	Correction   atlas.Correction
	Fill         float64
	Rects        []atlas.Rect
}
