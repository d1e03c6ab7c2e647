package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/thumbatlas/pkg/atlas"
	"github.com/matzehuels/thumbatlas/pkg/config"
	"github.com/matzehuels/thumbatlas/pkg/errors"
	"github.com/matzehuels/thumbatlas/pkg/history"
	pkgio "github.com/matzehuels/thumbatlas/pkg/io"
	"github.com/matzehuels/thumbatlas/pkg/status"
)

// recordingStore keeps every record written to it.
type recordingStore struct {
	status.MemoryStore
	mu      sync.Mutex
	records []status.Status
}

func (s *recordingStore) Put(ctx context.Context, st status.Status) error {
	s.mu.Lock()
	s.records = append(s.records, st)
	s.mu.Unlock()
	return s.MemoryStore.Put(ctx, st)
}

func (s *recordingStore) all() []status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]status.Status(nil), s.records...)
}

// gatedStore blocks the second and later writes until release is closed.
type gatedStore struct {
	status.MemoryStore
	mu      sync.Mutex
	writes  int
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStore) Put(ctx context.Context, st status.Status) error {
	s.mu.Lock()
	s.writes++
	n := s.writes
	s.mu.Unlock()
	if n == 2 {
		close(s.entered)
	}
	if n >= 2 {
		<-s.release
	}
	return s.MemoryStore.Put(ctx, st)
}

func writeImages(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		img := imaging.New(20+i*3, 10+i*2, color.NRGBA{R: uint8(i * 20), G: 100, B: 50, A: 255})
		if err := imaging.Save(img, filepath.Join(dir, fmt.Sprintf("img%02d.png", i))); err != nil {
			t.Fatal(err)
		}
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	images := t.TempDir()
	out := t.TempDir()
	return Options{
		ImagesDir:        images,
		AtlasPath:        filepath.Join(out, "atlas.png"),
		CoordinatesPath:  filepath.Join(out, "atlas.json"),
		Limits:           atlas.Limits{MaxWidth: 256, MaxHeight: 256},
		ScanWorkers:      4,
		CompositeWorkers: 2,
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestValidateAndSetDefaults(t *testing.T) {
	base := func() Options {
		return Options{ImagesDir: "/images", AtlasPath: "/out/a.png", CoordinatesPath: "/out/a.json"}
	}
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"defaults", func(*Options) {}, false},
		{"missing images dir", func(o *Options) { o.ImagesDir = "" }, true},
		{"missing atlas path", func(o *Options) { o.AtlasPath = "" }, true},
		{"same output file", func(o *Options) { o.CoordinatesPath = "/out/a.png" }, true},
		{"negative workers", func(o *Options) { o.ScanWorkers = -1 }, true},
		{"fraction above one", func(o *Options) { o.CapFraction = 1.5 }, true},
		{"zero height", func(o *Options) { o.Limits = atlas.Limits{MaxWidth: 10} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base()
			tt.mutate(&opts)
			err := opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if opts.ScanWorkers != DefaultScanWorkers || opts.CompositeWorkers != DefaultCompositeWorkers {
					t.Errorf("workers = %d/%d", opts.ScanWorkers, opts.CompositeWorkers)
				}
				if opts.Limits != atlas.DefaultLimits() || opts.CapFraction != atlas.DefaultCapFraction {
					t.Errorf("layout defaults not applied: %+v %v", opts.Limits, opts.CapFraction)
				}
				if opts.Logger == nil {
					t.Error("Logger should default to a discard logger")
				}
			}
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Workers.Composite = 3

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.ImagesDir != filepath.Join(cfg.DataDir, "images") {
		t.Errorf("ImagesDir = %s", opts.ImagesDir)
	}
	if opts.AtlasPath != filepath.Join(cfg.DataDir, "atlas.png") || opts.CoordinatesPath != filepath.Join(cfg.DataDir, "atlas.json") {
		t.Errorf("artifact paths = %s, %s", opts.AtlasPath, opts.CoordinatesPath)
	}
	if opts.CompositeWorkers != 3 || opts.Limits.MaxWidth != config.DefaultMaxDimension {
		t.Errorf("opts = %+v", opts)
	}
}

func TestExecuteDropsCorruptImage(t *testing.T) {
	opts := testOptions(t)
	writeImages(t, opts.ImagesDir, 9)
	if err := os.WriteFile(filepath.Join(opts.ImagesDir, "img99.png"), []byte("corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := &recordingStore{}
	hist := history.NewMemoryStore(0)
	r := NewRunner(nil, nil, store, hist, nil)

	res, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Coordinates) != 9 || res.Stats.Composited != 9 {
		t.Errorf("coordinates = %d, composited = %d, want 9", len(res.Coordinates), res.Stats.Composited)
	}
	if _, ok := res.Coordinates["img99.png"]; ok {
		t.Error("corrupt image must not appear in the coordinate map")
	}
	if len(res.Dropped) != 1 || res.Dropped[0].ID != "img99.png" {
		t.Errorf("dropped = %+v", res.Dropped)
	}

	coords, err := pkgio.ImportJSON(opts.CoordinatesPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(coords) != 9 {
		t.Errorf("written map has %d entries, want 9", len(coords))
	}
	img, err := imaging.Open(opts.AtlasPath)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != res.Width || b.Dy() != res.Height {
		t.Errorf("atlas %v, result says %dx%d", b, res.Width, res.Height)
	}
	for id, p := range coords {
		if p.X+p.Width > res.Width || p.Y+p.Height > res.Height {
			t.Errorf("%s outside atlas: %+v", id, p)
		}
	}

	final, _, _ := store.Get(context.Background())
	if final.Status != status.StateComplete || final.Progress != 100 || final.RunID != res.RunID {
		t.Errorf("final status = %+v", final)
	}

	runs, _ := hist.List(context.Background(), 0)
	if len(runs) != 1 || runs[0].State != status.StateComplete || runs[0].Composited != 9 || runs[0].Dropped != 1 {
		t.Errorf("history = %+v", runs)
	}
}

func TestExecuteProgress(t *testing.T) {
	opts := testOptions(t)
	writeImages(t, opts.ImagesDir, 12)

	store := &recordingStore{}
	r := NewRunner(nil, nil, store, nil, nil)
	if _, err := r.Execute(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	records := store.all()
	if records[0].Status != status.StateInProgress || records[0].Progress != 0 || records[0].Message != status.MessageStarting {
		t.Errorf("first record = %+v", records[0])
	}
	seen := map[int]bool{}
	for i, rec := range records {
		seen[rec.Progress] = true
		if i == 0 {
			continue
		}
		prev := records[i-1]
		if rec.Progress < prev.Progress {
			t.Errorf("progress decreased at %d: %d -> %d", i, prev.Progress, rec.Progress)
		}
		if !rec.LastUpdated.After(*prev.LastUpdated) {
			t.Errorf("lastUpdated did not increase at %d", i)
		}
	}
	for _, milestone := range []int{5, 10, 15, 30, 35, 40, 45, 90, 95, 100} {
		if !seen[milestone] {
			t.Errorf("milestone %d never reported", milestone)
		}
	}
	if last := records[len(records)-1]; last.Status != status.StateComplete || last.Message != status.MessageComplete {
		t.Errorf("last record = %+v", last)
	}
}

func TestExecuteEmptyDirectory(t *testing.T) {
	opts := testOptions(t)
	store := status.NewMemoryStore()
	hist := history.NewMemoryStore(0)
	r := NewRunner(nil, nil, store, hist, nil)

	_, err := r.Execute(context.Background(), opts)
	if !errors.Is(err, errors.ErrCodeEmptyInventory) {
		t.Fatalf("err = %v, want EMPTY_INVENTORY", err)
	}

	st, _, _ := store.Get(context.Background())
	if st.Status != status.StateError {
		t.Errorf("status = %s, want error", st.Status)
	}
	if want := "Error: no image files found in " + opts.ImagesDir; st.Message != want {
		t.Errorf("message = %q, want %q", st.Message, want)
	}
	if exists(opts.AtlasPath) || exists(opts.CoordinatesPath) {
		t.Error("no artifacts should be written")
	}

	runs, _ := hist.List(context.Background(), 0)
	if len(runs) != 1 || runs[0].State != status.StateError || runs[0].ErrorCode != string(errors.ErrCodeEmptyInventory) {
		t.Errorf("history = %+v", runs)
	}
}

func TestExecuteCoordinateMapUnwritable(t *testing.T) {
	opts := testOptions(t)
	writeImages(t, opts.ImagesDir, 3)
	// A non-empty directory where the coordinate map should go.
	if err := os.MkdirAll(filepath.Join(opts.CoordinatesPath, "keep"), 0o755); err != nil {
		t.Fatal(err)
	}
	store := status.NewMemoryStore()
	r := NewRunner(nil, nil, store, nil, nil)

	if _, err := r.Execute(context.Background(), opts); !errors.Is(err, errors.ErrCodePersistFailure) {
		t.Fatalf("err = %v, want PERSIST_FAILURE", err)
	}
	if exists(opts.AtlasPath) {
		t.Error("atlas image should not be written without its coordinate map")
	}
	st, _, _ := store.Get(context.Background())
	if st.Status != status.StateError {
		t.Errorf("status = %s, want error", st.Status)
	}
}

func TestExecuteMissingDirectory(t *testing.T) {
	opts := testOptions(t)
	opts.ImagesDir = filepath.Join(opts.ImagesDir, "missing")
	r := NewRunner(nil, nil, nil, nil, nil)
	if _, err := r.Execute(context.Background(), opts); !errors.Is(err, errors.ErrCodeDirectoryNotFound) {
		t.Errorf("err = %v, want DIRECTORY_NOT_FOUND", err)
	}
	if r.Running() {
		t.Error("runner should be idle after a failed run")
	}
}

func TestExecuteCancelled(t *testing.T) {
	opts := testOptions(t)
	writeImages(t, opts.ImagesDir, 3)
	store := status.NewMemoryStore()
	r := NewRunner(nil, nil, store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Execute(ctx, opts); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	st, _, _ := store.Get(context.Background())
	if st.Status != status.StateError {
		t.Errorf("status = %s, want error", st.Status)
	}
}

func TestStartRejectsConcurrentRun(t *testing.T) {
	opts := testOptions(t)
	writeImages(t, opts.ImagesDir, 3)
	store := newGatedStore()
	r := NewRunner(nil, nil, store, nil, nil)

	id, err := r.Start(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	<-store.entered
	if r.Active() != id {
		t.Errorf("Active() = %q, want %q", r.Active(), id)
	}

	if _, err := r.Start(context.Background(), opts); !errors.Is(err, errors.ErrCodeRunInProgress) {
		t.Errorf("second Start err = %v, want RUN_IN_PROGRESS", err)
	}
	if _, err := r.Execute(context.Background(), opts); !errors.Is(err, errors.ErrCodeRunInProgress) {
		t.Errorf("Execute err = %v, want RUN_IN_PROGRESS", err)
	}

	close(store.release)
	r.Wait()
	if r.Running() {
		t.Error("runner should be idle after Wait")
	}
	st, _, _ := store.Get(context.Background())
	if st.Status != status.StateComplete || st.RunID != id {
		t.Errorf("final status = %+v", st)
	}

	next, err := r.Start(context.Background(), opts)
	if err != nil {
		t.Fatalf("Start after completion: %v", err)
	}
	if next == id {
		t.Error("run ids must be unique")
	}
	r.Wait()
}

func TestPlan(t *testing.T) {
	opts := testOptions(t)
	writeImages(t, opts.ImagesDir, 5)
	store := status.NewMemoryStore()
	r := NewRunner(nil, nil, store, nil, nil)

	plan, err := r.Plan(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Images != 5 || len(plan.Rects) != 5 {
		t.Errorf("plan = %+v", plan)
	}
	if plan.Width <= 0 || plan.Height <= 0 || plan.Width > 256 || plan.Height > 256 {
		t.Errorf("plan size %dx%d", plan.Width, plan.Height)
	}
	if plan.Fill <= 0 || plan.Fill > 1 {
		t.Errorf("fill = %v", plan.Fill)
	}
	if exists(opts.AtlasPath) || exists(opts.CoordinatesPath) {
		t.Error("Plan must not write artifacts")
	}
	if _, ok, _ := store.Get(context.Background()); ok {
		t.Error("Plan must not write status")
	}
}
