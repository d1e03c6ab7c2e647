package atlas

import (
	"fmt"
	"testing"

	"github.com/matzehuels/thumbatlas/pkg/errors"
)

func TestCorrectWithinLimits(t *testing.T) {
	p, err := Packer{MaxWidth: 150}.Pack(sized([2]int{100, 50}, [2]int{50, 50}, [2]int{50, 100}))
	if err != nil {
		t.Fatal(err)
	}
	rects, c, err := Correct(p, Limits{MaxWidth: 150, MaxHeight: 150})
	if err != nil {
		t.Fatal(err)
	}
	if c.Applied || c.Scale != 1 {
		t.Errorf("correction applied: %+v", c)
	}
	if c.Width != 150 || c.Height != 100 {
		t.Errorf("atlas = %dx%d, want 150x100", c.Width, c.Height)
	}
	for i := range rects {
		if rects[i] != p.Rects[i] {
			t.Errorf("%s changed without correction", rects[i].ID)
		}
	}
}

func TestCorrectScalesDown(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			p, err := Packer{MaxWidth: 400}.Pack(randomRects(seed, 200, 60))
			if err != nil {
				t.Fatal(err)
			}
			lim := Limits{MaxWidth: 400, MaxHeight: p.Height / 2}
			rects, c, err := Correct(p, lim)
			if err != nil {
				t.Fatal(err)
			}
			if !c.Applied || c.Scale >= 1 {
				t.Fatalf("expected correction, got %+v", c)
			}
			if !lim.Fits(c.Width, c.Height) {
				t.Errorf("corrected atlas %dx%d exceeds limits", c.Width, c.Height)
			}
			checkBounds(t, rects, c.Width, c.Height)
			checkSeams(t, rects)
			for i, r := range rects {
				before := p.Rects[i]
				if r.W > before.W || r.H > before.H {
					t.Errorf("%s grew from %dx%d to %dx%d", r.ID, before.W, before.H, r.W, r.H)
				}
				if r.NeedsResize != (r.W != r.OriginalW || r.H != r.OriginalH) {
					t.Errorf("%s NeedsResize not re-derived", r.ID)
				}
			}
		})
	}
}

func TestCorrectPixelBudget(t *testing.T) {
	p, err := Packer{MaxWidth: 100}.Pack(sized([2]int{100, 100}, [2]int{100, 100}))
	if err != nil {
		t.Fatal(err)
	}
	lim := Limits{MaxWidth: 100, MaxHeight: 1000, MaxPixels: 5000}
	rects, c, err := Correct(p, lim)
	if err != nil {
		t.Fatal(err)
	}
	if int64(c.Width)*int64(c.Height) > 5000 {
		t.Errorf("atlas %dx%d exceeds pixel budget", c.Width, c.Height)
	}
	checkLayout(t, rects, c.Width, c.Height)
}

func TestCorrectKeepsThinRects(t *testing.T) {
	tests := []struct {
		name  string
		dims  [][2]int
		ys    []int
		xs    []int
		lim   Limits
		wantW int
		wantH int
		want  [][4]int // x, y, w, h
	}{
		{
			name:  "one pixel strip between wide rows",
			dims:  [][2]int{{100, 10}, {32, 1}, {100, 9}},
			ys:    []int{0, 10, 11},
			xs:    []int{0, 0, 0},
			lim:   Limits{MaxWidth: 100, MaxHeight: 18},
			wantW: 90, wantH: 18,
			want: [][4]int{{0, 0, 90, 9}, {0, 9, 29, 1}, {0, 9, 90, 8}},
		},
		{
			name:  "adjacent one pixel columns",
			dims:  [][2]int{{1, 100}, {1, 100}},
			ys:    []int{0, 0},
			xs:    []int{0, 1},
			lim:   Limits{MaxWidth: 2, MaxHeight: 50},
			wantW: 1, wantH: 50,
			want: [][4]int{{0, 0, 1, 50}, {0, 0, 1, 50}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Packing{Rects: sized(tt.dims...), Bins: 1}
			for i := range p.Rects {
				p.Rects[i].X, p.Rects[i].Y = tt.xs[i], tt.ys[i]
				p.UsedWidth = max(p.UsedWidth, p.Rects[i].X+p.Rects[i].W)
				p.Height = max(p.Height, p.Rects[i].Y+p.Rects[i].H)
			}
			p.BinWidth = p.UsedWidth

			rects, c, err := Correct(p, tt.lim)
			if err != nil {
				t.Fatalf("Correct: %v", err)
			}
			if c.Width != tt.wantW || c.Height != tt.wantH {
				t.Errorf("atlas = %dx%d, want %dx%d", c.Width, c.Height, tt.wantW, tt.wantH)
			}
			checkBounds(t, rects, c.Width, c.Height)
			for i, r := range rects {
				if got := [4]int{r.X, r.Y, r.W, r.H}; got != tt.want[i] {
					t.Errorf("%s = %v, want %v", r.ID, got, tt.want[i])
				}
			}
		})
	}
}

func TestCorrectCanvasCollapse(t *testing.T) {
	p := &Packing{Rects: sized([2]int{1, 1000}), BinWidth: 1, UsedWidth: 1, Height: 1000, Bins: 1}
	_, _, err := Correct(p, Limits{MaxWidth: 1, MaxHeight: 1})
	if !errors.Is(err, errors.ErrCodeAtlasTooLarge) {
		t.Errorf("err = %v, want ATLAS_TOO_LARGE", err)
	}
}

func TestCorrectEmpty(t *testing.T) {
	_, _, err := Correct(&Packing{BinWidth: 10}, DefaultLimits())
	if !errors.Is(err, errors.ErrCodeAtlasTooLarge) {
		t.Errorf("err = %v, want ATLAS_TOO_LARGE", err)
	}
}
