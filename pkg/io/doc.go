// Package io persists atlas artifacts: the composite PNG and the JSON
// coordinate map consumed by the viewer.
//
// # Coordinate Map Format
//
// The coordinate map is a single JSON object keyed by image id (the source
// filename). Every value describes the image's rectangle in atlas pixels:
//
//	{
//	  "cat-001.jpg": {
//	    "x": 0, "y": 0, "width": 128, "height": 96,
//	    "originalWidth": 4000, "originalHeight": 3000,
//	    "scalingFactor": 0.032
//	  }
//	}
//
// Required fields:
//   - x, y: non-negative top-left offset
//   - width, height: positive size
//
// Optional fields:
//   - originalWidth, originalHeight: native size of the source
//   - scalingFactor: width / originalWidth
//
// Only images that were drawn into the atlas appear in the map.
//
// # Atomic Replacement
//
// [ExportJSON] and [ExportPNG] write to a temporary file in the destination
// directory and rename it into place. Readers see either the previous
// artifact or the new one, never a partial file. Failures are returned as
// PERSIST_FAILURE errors carrying the underlying cause.
package io
