package atlas

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/thumbatlas/pkg/cache"
	"github.com/matzehuels/thumbatlas/pkg/errors"
)

var red = color.NRGBA{R: 255, A: 255}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b10.PNG", "b2.jpg", "c.Webp", "notes.txt", ".hidden.png", "d.avif"} {
		writeFile(t, dir, name, "")
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := List(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b2.jpg", "b10.PNG", "c.Webp", "d.avif"}
	if !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	got, err = List(dir, []string{".PNG"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"b10.PNG"}) {
		t.Errorf("List(.PNG) = %v", got)
	}
}

func TestListFollowsSymlinks(t *testing.T) {
	src := t.TempDir()
	target := writeImage(t, src, "real.png", 6, 4, red)
	if err := os.Mkdir(filepath.Join(src, "album.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	writeImage(t, dir, "a.png", 3, 3, red)
	links := map[string]string{
		"b.png":        target,
		"dangling.png": filepath.Join(src, "missing.png"),
		"folder.png":   filepath.Join(src, "album.png"),
	}
	for name, to := range links {
		if err := os.Symlink(to, filepath.Join(dir, name)); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
	}

	var buf bytes.Buffer
	s := &Scanner{Pool: newPool(t, 2), Logger: log.NewWithOptions(&buf, log.Options{})}
	got, err := s.List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"a.png", "b.png"}) {
		t.Errorf("List() = %v, want [a.png b.png]", got)
	}
	for _, name := range []string{"dangling.png", "folder.png"} {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("skipped %s not logged:\n%s", name, buf.String())
		}
	}

	inv, err := s.Scan(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.Images) != 2 || inv.Images[1].Width != 6 || inv.Images[1].Height != 4 {
		t.Errorf("images = %+v", inv.Images)
	}
}

func TestListOnlySymlinks(t *testing.T) {
	target := writeImage(t, t.TempDir(), "real.png", 2, 2, red)
	dir := t.TempDir()
	if err := os.Symlink(target, filepath.Join(dir, "linked.png")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	got, err := List(dir, nil)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if !slices.Equal(got, []string{"linked.png"}) {
		t.Errorf("List() = %v", got)
	}
}

func TestListErrors(t *testing.T) {
	empty := t.TempDir()
	textOnly := t.TempDir()
	writeFile(t, textOnly, "readme.md", "hi")

	tests := []struct {
		name string
		dir  string
		code errors.Code
	}{
		{"missing", filepath.Join(empty, "nope"), errors.ErrCodeDirectoryNotFound},
		{"empty", empty, errors.ErrCodeEmptyInventory},
		{"no images", textOnly, errors.ErrCodeEmptyInventory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := List(tt.dir, nil)
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestScanDropsUnreadable(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 9; i++ {
		writeImage(t, dir, fmt.Sprintf("img%d.png", i), 10+i, 20, red)
	}
	writeFile(t, dir, "corrupt.png", "definitely not a png")

	var calls []int
	s := &Scanner{
		Pool:     newPool(t, 4),
		Progress: func(done, total int) { calls = append(calls, done) },
	}
	inv, err := s.Scan(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Candidate != 10 || len(inv.Images) != 9 || len(inv.Dropped) != 1 {
		t.Fatalf("candidates=%d images=%d dropped=%d", inv.Candidate, len(inv.Images), len(inv.Dropped))
	}
	if d := inv.Dropped[0]; d.ID != "corrupt.png" || !errors.Is(d.Err, errors.ErrCodeUnreadableImage) {
		t.Errorf("dropped = %+v", d)
	}
	for i, img := range inv.Images {
		if img.ID != fmt.Sprintf("img%d.png", i) {
			t.Errorf("Images[%d] = %s", i, img.ID)
		}
		if img.Width != 10+i || img.Height != 20 {
			t.Errorf("%s = %dx%d", img.ID, img.Width, img.Height)
		}
		if img.Path != filepath.Join(dir, img.ID) {
			t.Errorf("%s path = %s", img.ID, img.Path)
		}
	}
	if !slices.Equal(calls, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Errorf("progress calls = %v", calls)
	}
}

func TestScanAllUnreadable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.png", "x")
	writeFile(t, dir, "b.jpg", "y")

	s := &Scanner{Pool: newPool(t, 2)}
	inv, err := s.Scan(context.Background(), dir)
	if !errors.Is(err, errors.ErrCodeEmptyInventory) {
		t.Fatalf("err = %v, want EMPTY_INVENTORY", err)
	}
	if len(inv.Dropped) != 2 {
		t.Errorf("dropped = %d, want 2", len(inv.Dropped))
	}
}

func TestScanUsesCache(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		writeImage(t, dir, fmt.Sprintf("%d.png", i), 8, 8, red)
	}
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	s := &Scanner{Pool: newPool(t, 2), Cache: fc}
	first, err := s.Scan(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHits != 0 {
		t.Errorf("first scan hits = %d, want 0", first.CacheHits)
	}

	second, err := s.Scan(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if second.CacheHits != 3 {
		t.Errorf("second scan hits = %d, want 3", second.CacheHits)
	}
	if !slices.Equal(first.Images, second.Images) {
		t.Errorf("cached scan differs: %v vs %v", first.Images, second.Images)
	}
}

func TestScanCancelled(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", 4, 4, red)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Scanner{Pool: newPool(t, 1)}
	if _, err := s.Scan(ctx, dir); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestReadDimensions(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "x.jpg", 33, 17, red)
	w, h, err := ReadDimensions(path)
	if err != nil {
		t.Fatal(err)
	}
	if w != 33 || h != 17 {
		t.Errorf("ReadDimensions = %dx%d, want 33x17", w, h)
	}
	if _, _, err := ReadDimensions(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}
