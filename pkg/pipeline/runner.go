package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/thumbatlas/pkg/atlas"
	"github.com/matzehuels/thumbatlas/pkg/cache"
	"github.com/matzehuels/thumbatlas/pkg/errors"
	"github.com/matzehuels/thumbatlas/pkg/history"
	"github.com/matzehuels/thumbatlas/pkg/observability"
	"github.com/matzehuels/thumbatlas/pkg/status"
)

// Runner executes generation runs with caching, status reporting and
// history.
//
// Only one run executes at a time per Runner: all runs write the same
// artifact paths, so a second Start or Execute while a run is active fails
// with RUN_IN_PROGRESS. Plan does not take the guard.
type Runner struct {
	Cache   cache.Cache
	Keyer   cache.Keyer
	Status  status.Store
	History history.Store
	Logger  *log.Logger

	guard  sync.Mutex // held for the duration of a run
	mu     sync.Mutex // protects active
	active string
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewRunner creates a runner.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// If store is nil, status is kept in memory; if hist is nil, runs are not
// recorded.
func NewRunner(c cache.Cache, keyer cache.Keyer, store status.Store, hist history.Store, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if store == nil {
		store = status.NewMemoryStore()
	}
	if hist == nil {
		hist = history.NullStore{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:   c,
		Keyer:   keyer,
		Status:  store,
		History: hist,
		Logger:  logger,
		now:     time.Now,
	}
}

// Start begins a run in the background and returns its id once the run
// guard is held and the in_progress record is written. ctx bounds the run
// itself, not just the call.
func (r *Runner) Start(ctx context.Context, opts Options) (string, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return "", err
	}
	runID, reporter, err := r.begin(ctx, opts)
	if err != nil {
		return "", err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.end()
		_, _ = r.run(ctx, runID, opts, reporter)
	}()
	return runID, nil
}

// Execute runs the complete scan → layout → render pipeline and waits for
// it. The terminal status is written before Execute returns.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	runID, reporter, err := r.begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer r.end()
	return r.run(ctx, runID, opts, reporter)
}

// Wait blocks until every run started with Start has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Active returns the id of the running run, or "" when idle.
func (r *Runner) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	return r.Active() != ""
}

// Plan scans and lays out the images without compositing or writing
// anything. It does not touch the status record.
func (r *Runner) Plan(ctx context.Context, opts Options) (*Plan, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForScan(); err != nil {
		return nil, err
	}

	inv, err := r.Scan(ctx, opts, discardSink{})
	if err != nil {
		return nil, err
	}
	l, err := GenerateLayout(ctx, inv.Images, opts, discardSink{})
	if err != nil {
		return nil, err
	}
	return &Plan{
		Images:       len(inv.Images),
		Dropped:      inv.Dropped,
		DimensionCap: l.DimensionCap,
		Width:        l.Width,
		Height:       l.Height,
		Correction:   l.Correction,
		Fill:         l.Fill,
		Rects:        l.Rects,
	}, nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	r.Wait()
	var errs []error
	for _, c := range []interface{ Close() error }{r.Cache, r.Status, r.History} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// begin takes the run guard and writes the in_progress record.
func (r *Runner) begin(ctx context.Context, opts Options) (string, *status.Reporter, error) {
	if !r.guard.TryLock() {
		return "", nil, errors.New(errors.ErrCodeRunInProgress, "atlas generation %s is already running", r.Active())
	}

	runID := uuid.NewString()
	reporter := status.NewReporter(r.Status, runID, r.logger(opts))
	if err := reporter.Start(ctx); err != nil {
		r.guard.Unlock()
		return "", nil, errors.Wrap(errors.ErrCodeInternal, err, "record run start")
	}

	r.mu.Lock()
	r.active = runID
	r.mu.Unlock()
	return runID, reporter, nil
}

func (r *Runner) end() {
	r.mu.Lock()
	r.active = ""
	r.mu.Unlock()
	r.guard.Unlock()
}

// run executes the stages and is the single place that writes the terminal
// status and the history record.
func (r *Runner) run(ctx context.Context, runID string, opts Options, reporter *status.Reporter) (*Result, error) {
	logger := r.logger(opts).With("run", runID)
	opts.Logger = logger
	started := r.timeNow()
	logger.Info("starting atlas generation", "images", opts.ImagesDir)

	result, err := r.generate(ctx, runID, opts, reporter)

	// Terminal writes must land even when ctx was cancelled.
	final := context.WithoutCancel(ctx)
	rec := history.Run{
		ID:        runID,
		StartedAt: started.UTC(),
		ImagesDir: opts.ImagesDir,
	}
	if result != nil {
		rec.Candidates = result.Stats.Candidates
		rec.Readable = result.Stats.Readable
		rec.Composited = result.Stats.Composited
		rec.Dropped = len(result.Dropped)
		rec.DimensionCap = result.DimensionCap
		rec.AtlasWidth, rec.AtlasHeight = result.Width, result.Height
		rec.Scale = result.Correction.Scale
	}

	if err != nil {
		reporter.Fail(final, err)
		logger.Error("atlas generation failed", "err", err)
		rec.State = status.StateError
		rec.ErrorCode = string(errors.GetCode(err))
	} else {
		reporter.Complete(final, status.MessageComplete)
		logger.Info("atlas generation complete",
			"size", result.sizeString(),
			"images", result.Stats.Composited,
			"dropped", len(result.Dropped),
			"duration", r.timeNow().Sub(started).Round(time.Millisecond))
		rec.State = status.StateComplete
	}
	rec.Message = reporter.Snapshot().Message
	rec.FinishedAt = r.timeNow().UTC()

	if herr := r.History.Record(final, rec); herr != nil {
		logger.Warn("record run history", "err", herr)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// generate runs the stages. On failure it returns whatever partial result
// was gathered so the history record carries the counts.
func (r *Runner) generate(ctx context.Context, runID string, opts Options, sink status.Sink) (*Result, error) {
	sink.Report(ctx, status.PhaseInit, 5, "Initializing atlas generation...")
	res := &Result{
		RunID:           runID,
		AtlasPath:       opts.AtlasPath,
		CoordinatesPath: opts.CoordinatesPath,
	}

	// Stage 1: Scan
	var inv *atlas.Inventory
	err := stage(ctx, "scan", &res.Stats.ScanTime, func() (err error) {
		inv, err = r.Scan(ctx, opts, sink)
		return err
	})
	if inv != nil {
		res.Stats.Candidates = inv.Candidate
		res.Stats.Readable = len(inv.Images)
		res.Stats.CacheHits = inv.CacheHits
		res.Dropped = append(res.Dropped, inv.Dropped...)
	}
	if err != nil {
		return res, err
	}
	opts.Logger.Info("scanned images",
		"readable", len(inv.Images),
		"dropped", len(inv.Dropped),
		"cache_hits", inv.CacheHits,
		"duration", res.Stats.ScanTime)

	// Stage 2: Layout
	var l *Layout
	err = stage(ctx, "layout", &res.Stats.LayoutTime, func() (err error) {
		l, err = GenerateLayout(ctx, inv.Images, opts, sink)
		return err
	})
	if err != nil {
		return res, err
	}
	res.DimensionCap = l.DimensionCap
	res.Width, res.Height = l.Width, l.Height
	res.Correction = l.Correction
	res.Stats.Fill = l.Fill
	opts.Logger.Info("computed layout",
		"size", res.sizeString(),
		"cap", l.DimensionCap,
		"fill", l.Fill,
		"duration", res.Stats.LayoutTime)

	// Stage 3: Render
	var out *Rendered
	err = stage(ctx, "render", &res.Stats.RenderTime, func() (err error) {
		out, err = Render(ctx, l, opts, sink)
		return err
	})
	if err != nil {
		return res, err
	}
	res.Coordinates = out.Coordinates
	res.Stats.Composited = out.Composited
	res.Dropped = append(res.Dropped, out.Dropped...)
	opts.Logger.Info("rendered atlas",
		"atlas", opts.AtlasPath,
		"coordinates", opts.CoordinatesPath,
		"duration", res.Stats.RenderTime)
	return res, nil
}

// stage times fn and emits pipeline hooks around it.
func stage(ctx context.Context, name string, elapsed *time.Duration, fn func() error) error {
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, name)
	start := time.Now()
	err := fn()
	*elapsed = time.Since(start)
	hooks.OnStageComplete(ctx, name, *elapsed, err)
	return err
}

func (r *Runner) timeNow() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *Runner) logger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func (res *Result) sizeString() string {
	return fmt.Sprintf("%dx%d", res.Width, res.Height)
}

// discardSink drops progress; used by Plan.
type discardSink struct{}

func (discardSink) Report(context.Context, status.Phase, int, string) {}
func (discardSink) Complete(context.Context, string)                  {}
func (discardSink) Fail(context.Context, error)                       {}
