package io

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/thumbatlas/pkg/atlas"
	"github.com/matzehuels/thumbatlas/pkg/errors"
)

// Compression names accepted by [ParseCompression].
const (
	CompressionDefault = "default"
	CompressionBest    = "best"
	CompressionFast    = "fast"
	CompressionNone    = "none"
)

var compressionLevels = map[string]png.CompressionLevel{
	CompressionDefault: png.DefaultCompression,
	CompressionBest:    png.BestCompression,
	CompressionFast:    png.BestSpeed,
	CompressionNone:    png.NoCompression,
}

// ParseCompression maps a compression name to a PNG level. An empty name is
// the default level.
func ParseCompression(name string) (png.CompressionLevel, error) {
	if name == "" {
		return png.DefaultCompression, nil
	}
	level, ok := compressionLevels[name]
	if !ok {
		return 0, errors.New(errors.ErrCodeInvalidConfig, "unknown compression %q", name)
	}
	return level, nil
}

// WriteJSON encodes a coordinate map as JSON and writes it to w.
// Keys are written in sorted order, so equal maps produce equal bytes.
func WriteJSON(m atlas.CoordinateMap, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON atomically replaces the coordinate map at path.
func ExportJSON(m atlas.CoordinateMap, path string) error {
	p, err := StageJSON(m, path)
	if err != nil {
		return err
	}
	return Commit(p)
}

// StageJSON writes the coordinate map next to path without replacing it.
func StageJSON(m atlas.CoordinateMap, path string) (*Pending, error) {
	return stage(path, func(w io.Writer) error {
		return WriteJSON(m, w)
	})
}

// WritePNG encodes img as PNG with the given compression level.
func WritePNG(img image.Image, w io.Writer, level png.CompressionLevel) error {
	if err := imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(level)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// ExportPNG atomically replaces the atlas image at path.
func ExportPNG(img image.Image, path string, level png.CompressionLevel) error {
	p, err := StagePNG(img, path, level)
	if err != nil {
		return err
	}
	return Commit(p)
}

// StagePNG writes the atlas image next to path without replacing it.
func StagePNG(img image.Image, path string, level png.CompressionLevel) (*Pending, error) {
	return stage(path, func(w io.Writer) error {
		return WritePNG(img, w, level)
	})
}

// Pending is an artifact fully written to a temporary sibling of its
// destination and not yet visible there.
type Pending struct {
	tmp  string
	path string
}

// Path returns the destination path.
func (p *Pending) Path() string { return p.path }

// Discard removes the temporary file. It is safe to call after Commit.
func (p *Pending) Discard() {
	if p.tmp != "" {
		os.Remove(p.tmp)
		p.tmp = ""
	}
}

// Commit renames every pending artifact into place, in order. If a rename
// fails, artifacts already moved by this call are removed and the rest are
// discarded, so a set is never left half replaced with new files.
func Commit(pending ...*Pending) error {
	for i, p := range pending {
		if err := os.Rename(p.tmp, p.path); err != nil {
			for _, done := range pending[:i] {
				os.Remove(done.path)
			}
			for _, rest := range pending[i:] {
				rest.Discard()
			}
			return errors.Wrap(errors.ErrCodePersistFailure, err, "replace %s", p.path)
		}
		p.tmp = ""
	}
	return nil
}

// stage streams fn's output into a temporary sibling of path, synced and
// closed, ready for Commit.
func stage(path string, fn func(io.Writer) error) (*Pending, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodePersistFailure, err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePersistFailure, err, "create temp file for %s", path)
	}
	p := &Pending{tmp: tmp.Name(), path: path}

	if err := fn(tmp); err != nil {
		tmp.Close()
		p.Discard()
		return nil, errors.Wrap(errors.ErrCodePersistFailure, err, "write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		p.Discard()
		return nil, errors.Wrap(errors.ErrCodePersistFailure, err, "sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		p.Discard()
		return nil, errors.Wrap(errors.ErrCodePersistFailure, err, "close %s", path)
	}
	if err := os.Chmod(p.tmp, 0o644); err != nil {
		p.Discard()
		return nil, errors.Wrap(errors.ErrCodePersistFailure, err, "chmod %s", path)
	}
	return p, nil
}
