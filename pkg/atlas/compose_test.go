package atlas

import (
	"context"
	"image/color"
	"testing"

	"github.com/matzehuels/thumbatlas/pkg/errors"
)

func TestCompose(t *testing.T) {
	dir := t.TempDir()
	blue := color.NRGBA{B: 255, A: 255}
	rects := []Rect{
		{ID: "red.png", Path: writeImage(t, dir, "red.png", 10, 10, red), OriginalW: 10, OriginalH: 10, W: 10, H: 10},
		{ID: "blue.png", Path: writeImage(t, dir, "blue.png", 40, 20, blue), OriginalW: 40, OriginalH: 20, W: 20, H: 10, X: 10, NeedsResize: true},
		{ID: "broken.png", Path: writeFile(t, dir, "broken.png", "garbage"), OriginalW: 5, OriginalH: 5, W: 5, H: 5, Y: 10},
	}

	var last int
	c := &Compositor{
		Pool:     newPool(t, 2),
		Progress: func(done, total int) { last = done },
	}
	out, err := c.Compose(context.Background(), rects, 30, 15)
	if err != nil {
		t.Fatal(err)
	}
	if b := out.Image.Bounds(); b.Dx() != 30 || b.Dy() != 15 {
		t.Errorf("canvas = %v", b)
	}
	if len(out.Placed) != 2 || out.Placed[0].ID != "red.png" || out.Placed[1].ID != "blue.png" {
		t.Errorf("placed = %+v", out.Placed)
	}
	if len(out.Dropped) != 1 || !errors.Is(out.Dropped[0].Err, errors.ErrCodeCompositeFailure) {
		t.Errorf("dropped = %+v", out.Dropped)
	}
	if last != 3 {
		t.Errorf("progress ended at %d, want 3", last)
	}

	pixels := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 0, red},
		{9, 9, red},
		{15, 5, blue},
		{29, 9, blue},
		{2, 12, color.NRGBA{}},  // broken image leaves transparency
		{29, 14, color.NRGBA{}}, // never covered
	}
	for _, p := range pixels {
		if got := out.Image.NRGBAAt(p.x, p.y); got != p.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", p.x, p.y, got, p.want)
		}
	}
}

func TestComposeRejectsOutOfBounds(t *testing.T) {
	c := &Compositor{Pool: newPool(t, 1)}
	rects := []Rect{{ID: "a", W: 10, H: 10, X: 5}}
	if _, err := c.Compose(context.Background(), rects, 10, 10); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
	if _, err := c.Compose(context.Background(), nil, 0, 10); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}
