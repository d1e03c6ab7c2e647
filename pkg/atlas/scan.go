package atlas

import (
	"context"
	"encoding/json"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/natural"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/thumbatlas/pkg/cache"
	"github.com/matzehuels/thumbatlas/pkg/errors"
	"github.com/matzehuels/thumbatlas/pkg/observability"
	"github.com/matzehuels/thumbatlas/pkg/workpool"
)

// DefaultExtensions is the default allow-list of image file extensions.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif", ".avif", ".tiff", ".tif", ".bmp"}

// ProgressFunc receives the number of finished items out of total. Calls
// are serialized and done never decreases.
type ProgressFunc func(done, total int)

// Scanner enumerates a directory and probes image dimensions.
type Scanner struct {
	// Extensions is the allow-list, matched case-insensitively.
	// Nil means DefaultExtensions.
	Extensions []string

	// Pool bounds concurrent header reads. Required.
	Pool *workpool.Pool

	// Cache stores probe results keyed by path, size and modification time.
	// Nil disables caching.
	Cache cache.Cache
	Keyer cache.Keyer

	Logger *log.Logger

	// Progress, if set, is called as probes finish.
	Progress ProgressFunc
}

// Inventory is the result of a scan.
type Inventory struct {
	Dir       string
	Images    []SourceImage // in natural filename order
	Dropped   []Drop
	Candidate int // files that matched the allow-list
	CacheHits int
}

// List returns the names of allowed files in dir, in natural order.
//
// Symlinks are followed and kept when they resolve to a regular file. It
// fails with DIRECTORY_NOT_FOUND when dir is missing or unreadable and with
// EMPTY_INVENTORY when nothing matches.
func List(dir string, extensions []string) ([]string, error) {
	return list(dir, extensions, discardLogger)
}

// List is the package-level List with skipped entries logged to s.Logger.
func (s *Scanner) List(dir string) ([]string, error) {
	return list(dir, s.Extensions, s.logger())
}

func list(dir string, extensions []string, logger *log.Logger) ([]string, error) {
	if extensions == nil {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDirectoryNotFound, err, "read image directory %s", dir)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || !allowed[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		if ok, err := isRegular(filepath.Join(dir, name), e); !ok {
			logger.Warn("skipping image entry", "dir", dir, "name", name, "type", e.Type().String(), "err", err)
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInventory, "no image files found in %s", dir)
	}
	sort.Sort(natural.StringSlice(names))
	return names, nil
}

// isRegular reports whether e is a regular file or a symlink to one.
func isRegular(path string, e fs.DirEntry) (bool, error) {
	if e.Type().IsRegular() {
		return true, nil
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Scan lists dir and probes every matching file.
func (s *Scanner) Scan(ctx context.Context, dir string) (*Inventory, error) {
	names, err := s.List(dir)
	if err != nil {
		return nil, err
	}
	return s.Probe(ctx, dir, names)
}

// Probe reads the dimensions of each named file in dir from its header.
//
// Files whose dimensions cannot be read, or are not positive, are dropped
// with UNREADABLE_IMAGE and logged. Probe fails with EMPTY_INVENTORY when
// every file was dropped, and returns early only if ctx is cancelled.
func (s *Scanner) Probe(ctx context.Context, dir string, names []string) (*Inventory, error) {
	logger := s.logger()
	keyer := s.Keyer
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}

	type probe struct {
		img SourceImage
		hit bool
	}
	results := make([]probe, len(names))
	progress := s.progress(len(names))

	report, runErr := s.Pool.Run(ctx, len(names), func(ctx context.Context, i int) error {
		path := filepath.Join(dir, names[i])
		w, h, hit, err := s.dimensions(ctx, keyer, path)
		results[i] = probe{
			img: SourceImage{ID: names[i], Path: path, Width: w, Height: h},
			hit: hit,
		}
		progress()
		return err
	})
	if runErr != nil {
		return nil, runErr
	}

	inv := &Inventory{Dir: dir, Candidate: len(names)}
	failed := make(map[int]error, len(report.Failures))
	for _, f := range report.Failures {
		failed[f.Index] = f.Err
	}
	for i, r := range results {
		if err, ok := failed[i]; ok {
			err = errors.Wrap(errors.ErrCodeUnreadableImage, err, "probe %s", names[i])
			logger.Warn("dropping unreadable image", "id", names[i], "path", r.img.Path, "err", err)
			observability.Pipeline().OnImageDropped(ctx, names[i], err)
			inv.Dropped = append(inv.Dropped, Drop{ID: names[i], Path: r.img.Path, Err: err})
			continue
		}
		if r.hit {
			inv.CacheHits++
		}
		inv.Images = append(inv.Images, r.img)
	}

	if len(inv.Images) == 0 {
		return inv, errors.New(errors.ErrCodeEmptyInventory, "none of %d files in %s has readable dimensions", len(names), dir)
	}
	logger.Debug("probed images", "dir", dir, "readable", len(inv.Images), "dropped", len(inv.Dropped), "cache_hits", inv.CacheHits)
	return inv, nil
}

type cachedDims struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

func (s *Scanner) dimensions(ctx context.Context, keyer cache.Keyer, path string) (w, h int, hit bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, false, err
	}

	var key string
	if s.Cache != nil {
		key = keyer.DimensionsKey(path, info.Size(), info.ModTime())
		if data, ok, _ := s.Cache.Get(ctx, key); ok {
			var d cachedDims
			if json.Unmarshal(data, &d) == nil && d.Width > 0 && d.Height > 0 {
				observability.Cache().OnCacheHit(ctx, "dims")
				return d.Width, d.Height, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "dims")
	}

	w, h, err = ReadDimensions(path)
	if err != nil {
		return 0, 0, false, err
	}

	if s.Cache != nil {
		data, _ := json.Marshal(cachedDims{Width: w, Height: h})
		if err := s.Cache.Set(ctx, key, data, cache.TTLDimensions); err == nil {
			observability.Cache().OnCacheSet(ctx, "dims", len(data))
		}
	}
	return w, h, false, nil
}

// ReadDimensions decodes only the header of the image at path.
func ReadDimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, errors.New(errors.ErrCodeUnreadableImage, "%s header reports %dx%d", format, cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}

// progress returns a callback that counts finished items and forwards the
// count to s.Progress in order.
func (s *Scanner) progress(total int) func() {
	return serialProgress(s.Progress, total)
}

func (s *Scanner) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return discardLogger
}
