package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/thumbatlas/pkg/atlas"
	"github.com/matzehuels/thumbatlas/pkg/errors"
)

// ReadJSON decodes a coordinate map from r.
//
// ReadJSON returns an error if the JSON is malformed, if an id is not a
// plain filename, or if a placement has a negative offset or a non-positive
// size. It does not close r.
func ReadJSON(r io.Reader) (atlas.CoordinateMap, error) {
	var m atlas.CoordinateMap
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for id, p := range m {
		if err := errors.ValidateImageID(id); err != nil {
			return nil, fmt.Errorf("%q: %w", id, err)
		}
		if p.X < 0 || p.Y < 0 || p.Width <= 0 || p.Height <= 0 {
			return nil, fmt.Errorf("%s: invalid placement (%d,%d) %dx%d", id, p.X, p.Y, p.Width, p.Height)
		}
	}
	if m == nil {
		m = atlas.CoordinateMap{}
	}
	return m, nil
}

// ImportJSON reads the coordinate map at path.
func ImportJSON(path string) (atlas.CoordinateMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
