// Package config loads and resolves thumbatlas configuration.
//
// Configuration is read once at startup from an optional TOML file, overlaid
// with THUMBATLAS_* environment variables, validated, and then resolved so
// every path is absolute. The resolved value is injected into the pipeline,
// the status store and the server; nothing re-derives paths per request.
//
// # File format
//
//	data_dir = "./data"
//	images_dir = "images"
//
//	[atlas]
//	max_width = 8192
//	max_height = 8192
//	cap_fraction = 0.8
//
//	[workers]
//	scan = 16
//	composite = 4
//
//	[status]
//	backend = "file"
//	stale_after = "30s"
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/thumbatlas/pkg/atlas"
	"github.com/matzehuels/thumbatlas/pkg/errors"
	"github.com/matzehuels/thumbatlas/pkg/history"
	pkgio "github.com/matzehuels/thumbatlas/pkg/io"
	"github.com/matzehuels/thumbatlas/pkg/status"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultFile is the config file looked up in the working directory
	// when no explicit path is given.
	DefaultFile = "thumbatlas.toml"

	// DefaultMaxDimension is the largest texture side accepted by the viewer.
	DefaultMaxDimension = atlas.DefaultMaxDimension

	// DefaultMaxPixels bounds the atlas area (8192 × 8192).
	DefaultMaxPixels = atlas.DefaultMaxPixels

	// DefaultCapFraction is the share of the atlas side used by the
	// per-image dimension cap heuristic.
	DefaultCapFraction = atlas.DefaultCapFraction

	// DefaultScanWorkers bounds concurrent header reads.
	DefaultScanWorkers = 16

	// DefaultCompositeWorkers bounds concurrent decode/resize work.
	DefaultCompositeWorkers = 4

	// DefaultStaleAfter is how long an in_progress status may go without
	// updates before readers reclassify it.
	DefaultStaleAfter = status.DefaultStaleAfter
)

// Status store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

// DefaultExtensions is the image allow-list.
var DefaultExtensions = atlas.DefaultExtensions

// =============================================================================
// Config
// =============================================================================

// Config is the complete application configuration.
type Config struct {
	DataDir       string `toml:"data_dir"`
	ImagesDir     string `toml:"images_dir"`
	OutputDir     string `toml:"output_dir"`
	AtlasImage    string `toml:"atlas_image"`
	CoordinateMap string `toml:"coordinate_map"`

	Atlas   AtlasConfig   `toml:"atlas"`
	Workers WorkersConfig `toml:"workers"`
	Status  StatusConfig  `toml:"status"`
	History HistoryConfig `toml:"history"`
	Cache   CacheConfig   `toml:"cache"`
	Server  ServerConfig  `toml:"server"`

	resolved bool
}

// AtlasConfig holds the packing limits and output encoding.
type AtlasConfig struct {
	MaxWidth    int      `toml:"max_width"`
	MaxHeight   int      `toml:"max_height"`
	MaxPixels   int64    `toml:"max_pixels"`
	CapFraction float64  `toml:"cap_fraction"`
	Extensions  []string `toml:"extensions"`
	Compression string   `toml:"compression"`
}

// WorkersConfig bounds the two worker pools.
type WorkersConfig struct {
	Scan      int `toml:"scan"`
	Composite int `toml:"composite"`
}

// StatusConfig selects where the status snapshot lives.
type StatusConfig struct {
	Backend    string   `toml:"backend"`
	Path       string   `toml:"path"`
	RedisAddr  string   `toml:"redis_addr"`
	RedisKey   string   `toml:"redis_key"`
	StaleAfter Duration `toml:"stale_after"`
}

// HistoryConfig selects where run records are kept.
type HistoryConfig struct {
	Backend    string `toml:"backend"`
	MongoURI   string `toml:"mongo_uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// CacheConfig controls the dimension probe cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`

	// Namespace prefixes every key, isolating deployments that share Dir.
	Namespace string `toml:"namespace"`
}

// ServerConfig controls the HTTP trigger/status surface.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		DataDir:       "data",
		ImagesDir:     "images",
		AtlasImage:    "atlas.png",
		CoordinateMap: "atlas.json",
		Atlas: AtlasConfig{
			MaxWidth:    DefaultMaxDimension,
			MaxHeight:   DefaultMaxDimension,
			MaxPixels:   DefaultMaxPixels,
			CapFraction: DefaultCapFraction,
			Extensions:  append([]string(nil), DefaultExtensions...),
			Compression: pkgio.CompressionBest,
		},
		Workers: WorkersConfig{
			Scan:      DefaultScanWorkers,
			Composite: DefaultCompositeWorkers,
		},
		Status: StatusConfig{
			Backend:    BackendFile,
			RedisAddr:  "localhost:6379",
			RedisKey:   status.DefaultRedisKey,
			StaleAfter: Duration{DefaultStaleAfter},
		},
		History: HistoryConfig{
			Backend:    BackendNone,
			MongoURI:   "mongodb://localhost:27017",
			Database:   history.DefaultDatabase,
			Collection: history.DefaultCollection,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{5 * time.Second},
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load reads the configuration from path (or DefaultFile when path is empty
// and the file exists), applies environment overrides and validates it.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown key %q in %s", undecoded[0].String(), path)
		}
	} else if explicit {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays THUMBATLAS_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"THUMBATLAS_DATA_DIR":       &c.DataDir,
		"THUMBATLAS_IMAGES_DIR":     &c.ImagesDir,
		"THUMBATLAS_OUTPUT_DIR":     &c.OutputDir,
		"THUMBATLAS_STATUS_BACKEND": &c.Status.Backend,
		"THUMBATLAS_REDIS_ADDR":     &c.Status.RedisAddr,
		"THUMBATLAS_HISTORY":        &c.History.Backend,
		"THUMBATLAS_MONGO_URI":      &c.History.MongoURI,
		"THUMBATLAS_ADDR":           &c.Server.Addr,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"THUMBATLAS_MAX_WIDTH":         &c.Atlas.MaxWidth,
		"THUMBATLAS_MAX_HEIGHT":        &c.Atlas.MaxHeight,
		"THUMBATLAS_SCAN_WORKERS":      &c.Workers.Scan,
		"THUMBATLAS_COMPOSITE_WORKERS": &c.Workers.Composite,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s must be an integer", key)
		}
		*dst = n
	}
	return nil
}

// =============================================================================
// Validation & Resolution
// =============================================================================

// Validate checks every field for a usable value.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "data_dir is required")
	}
	for name, p := range map[string]string{
		"images_dir":     c.ImagesDir,
		"atlas_image":    c.AtlasImage,
		"coordinate_map": c.CoordinateMap,
	} {
		if filepath.IsAbs(p) {
			continue
		}
		if err := errors.ValidatePath(p); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", name)
		}
	}

	a := c.Atlas
	if a.MaxWidth <= 0 || a.MaxHeight <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "atlas max_width and max_height must be positive")
	}
	if a.MaxPixels <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "atlas max_pixels must be positive")
	}
	if a.CapFraction <= 0 || a.CapFraction > 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "atlas cap_fraction must be in (0, 1], got %g", a.CapFraction)
	}
	if len(a.Extensions) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "atlas extensions cannot be empty")
	}
	for i, ext := range a.Extensions {
		ext = strings.ToLower(ext)
		if err := errors.ValidateExtension(ext); err != nil {
			return err
		}
		c.Atlas.Extensions[i] = ext
	}
	if _, err := pkgio.ParseCompression(a.Compression); err != nil {
		return err
	}

	if c.Workers.Scan <= 0 || c.Workers.Composite <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "worker counts must be positive")
	}

	switch c.Status.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid status backend: %q (must be one of: memory, file, redis)", c.Status.Backend)
	}
	if c.Status.StaleAfter.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "status stale_after must be positive")
	}

	switch c.History.Backend {
	case BackendNone, BackendMemory, BackendMongo:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid history backend: %q (must be one of: none, memory, mongo)", c.History.Backend)
	}
	return nil
}

// Resolve makes every path absolute. It is idempotent.
func (c *Config) Resolve() error {
	if c.resolved {
		return nil
	}
	dataDir, err := filepath.Abs(c.DataDir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve data_dir")
	}
	c.DataDir = dataDir
	c.ImagesDir = c.under(dataDir, c.ImagesDir)

	if c.OutputDir == "" {
		c.OutputDir = dataDir
	} else if c.OutputDir, err = filepath.Abs(c.OutputDir); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve output_dir")
	}
	c.AtlasImage = c.under(c.OutputDir, c.AtlasImage)
	c.CoordinateMap = c.under(c.OutputDir, c.CoordinateMap)

	if c.Status.Path == "" {
		c.Status.Path = filepath.Join(c.OutputDir, ".thumbatlas", "status.json")
	}
	if c.Cache.Dir == "" {
		if dir, err := defaultCacheDir(); err == nil {
			c.Cache.Dir = dir
		} else {
			c.Cache.Enabled = false
		}
	}
	c.resolved = true
	return nil
}

func (c *Config) under(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// defaultCacheDir returns the cache directory using XDG standard (~/.cache/thumbatlas/).
func defaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "thumbatlas"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "thumbatlas"), nil
}
