package atlas

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/thumbatlas/pkg/workpool"
)

func writeImage(t *testing.T, dir, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(imaging.New(w, h, c), path); err != nil {
		t.Fatalf("save %s: %v", name, err)
	}
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newPool(t *testing.T, size int) *workpool.Pool {
	t.Helper()
	pool, err := workpool.New(size)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Release)
	return pool
}
