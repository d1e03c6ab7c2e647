package io

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/thumbatlas/pkg/atlas"
	"github.com/matzehuels/thumbatlas/pkg/errors"
)

func sampleMap() atlas.CoordinateMap {
	return atlas.BuildCoordinateMap([]atlas.Rect{
		{ID: "b.png", X: 10, Y: 0, W: 50, H: 25, OriginalW: 100, OriginalH: 50},
		{ID: "a.png", X: 0, Y: 0, W: 10, H: 10, OriginalW: 10, OriginalH: 10},
	})
}

func TestWriteJSONFields(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(sampleMap(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, field := range []string{`"x"`, `"y"`, `"width"`, `"height"`, `"originalWidth"`, `"originalHeight"`, `"scalingFactor": 0.5`} {
		if !strings.Contains(out, field) {
			t.Errorf("output missing %s:\n%s", field, out)
		}
	}
	if strings.Index(out, `"a.png"`) > strings.Index(out, `"b.png"`) {
		t.Error("keys should be sorted")
	}
}

func TestExportImportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "atlas.json")
	want := sampleMap()
	if err := ExportJSON(want, path); err != nil {
		t.Fatal(err)
	}

	// A second export fully replaces the first.
	delete(want, "b.png")
	if err := ExportJSON(want, path); err != nil {
		t.Fatal(err)
	}

	got, err := ImportJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["a.png"] != want["a.png"] {
		t.Errorf("ImportJSON = %+v, want %+v", got, want)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestReadJSONRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed", `{"a.png": `},
		{"negative offset", `{"a.png": {"x": -1, "y": 0, "width": 1, "height": 1}}`},
		{"zero size", `{"a.png": {"x": 0, "y": 0, "width": 0, "height": 1}}`},
		{"empty id", `{"": {"x": 0, "y": 0, "width": 1, "height": 1}}`},
		{"path id", `{"../a.png": {"x": 0, "y": 0, "width": 1, "height": 1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadJSON(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExportPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.png")
	img := imaging.New(7, 3, color.NRGBA{G: 255, A: 255})
	if err := ExportPNG(img, path, png.BestCompression); err != nil {
		t.Fatal(err)
	}
	got, err := imaging.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if b := got.Bounds(); b.Dx() != 7 || b.Dy() != 3 {
		t.Errorf("bounds = %v", b)
	}
}

func TestExportPersistFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	// The parent "directory" is a regular file.
	err := ExportJSON(sampleMap(), filepath.Join(blocker, "atlas.json"))
	if !errors.Is(err, errors.ErrCodePersistFailure) {
		t.Errorf("err = %v, want PERSIST_FAILURE", err)
	}
}

func TestCommitRollsBackPair(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "atlas.png")
	jsonPath := filepath.Join(dir, "atlas.json")

	// A non-empty directory at the map's path makes its rename fail.
	if err := os.MkdirAll(filepath.Join(jsonPath, "keep"), 0o755); err != nil {
		t.Fatal(err)
	}

	img, err := StagePNG(imaging.New(4, 4, color.NRGBA{A: 255}), pngPath, png.DefaultCompression)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Discard()
	coords, err := StageJSON(sampleMap(), jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	defer coords.Discard()

	if _, err := os.Stat(pngPath); !os.IsNotExist(err) {
		t.Fatalf("staging should not create %s, stat err = %v", pngPath, err)
	}

	err = Commit(img, coords)
	if !errors.Is(err, errors.ErrCodePersistFailure) {
		t.Fatalf("Commit err = %v, want PERSIST_FAILURE", err)
	}
	if _, err := os.Stat(pngPath); !os.IsNotExist(err) {
		t.Errorf("atlas image left behind after failed commit, stat err = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temporary file %s left behind", e.Name())
		}
	}
}

func TestStageDiscard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atlas.json")
	p, err := StageJSON(sampleMap(), path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Path() != path {
		t.Errorf("Path() = %q, want %q", p.Path(), path)
	}
	p.Discard()
	p.Discard()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not empty after Discard: %v", entries)
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name    string
		want    png.CompressionLevel
		wantErr bool
	}{
		{"", png.DefaultCompression, false},
		{"best", png.BestCompression, false},
		{"fast", png.BestSpeed, false},
		{"none", png.NoCompression, false},
		{"ultra", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCompression(%q) error = %v", tt.name, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseCompression(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
