package atlas

// Placement is the final position of one image in the atlas.
type Placement struct {
	X              int     `json:"x"`
	Y              int     `json:"y"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	OriginalWidth  int     `json:"originalWidth"`
	OriginalHeight int     `json:"originalHeight"`
	ScalingFactor  float64 `json:"scalingFactor"`
}

// CoordinateMap maps image ids to placements.
type CoordinateMap map[string]Placement

// BuildCoordinateMap records every rectangle. Pass only rectangles that were
// composited; dropped images must not appear.
func BuildCoordinateMap(rects []Rect) CoordinateMap {
	m := make(CoordinateMap, len(rects))
	for _, r := range rects {
		m[r.ID] = Placement{
			X:              r.X,
			Y:              r.Y,
			Width:          r.W,
			Height:         r.H,
			OriginalWidth:  r.OriginalW,
			OriginalHeight: r.OriginalH,
			ScalingFactor:  r.ScaleFactor(),
		}
	}
	return m
}
