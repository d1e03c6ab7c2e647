// Package atlas builds texture atlases from directories of images.
//
// # Overview
//
// An atlas is a single raster holding every image of a collection at a
// fixed, non-overlapping pixel offset. A GPU viewer draws thumbnails by
// sampling the atlas with the coordinates recorded in a [CoordinateMap], so
// placements must be exact integers and must never overlap.
//
// Generation runs as a sequence of stages, each usable on its own:
//
//  1. [Scanner] lists allowed files and probes their dimensions from headers.
//  2. [Normalize] caps every image at a size derived from the collection size.
//  3. [Packer] places rectangles into a fixed-width, growable-height bin.
//  4. [Correct] uniformly downscales placements that exceed the atlas limits.
//  5. [Compositor] draws the sources onto a transparent canvas.
//  6. [BuildCoordinateMap] records the final placement of every drawn image.
//
// # Limits
//
// [Limits] bounds the atlas width, height and pixel count. The normalizer
// uses the limits heuristically: the dimension cap is
//
//	cap = fraction × min(maxDim, √maxPixels) / √N
//
// with fraction 0.8 by default. This makes a fit likely but does not
// guarantee it. [Correct] is the backstop and either brings the packed
// layout within limits or fails with ATLAS_TOO_LARGE.
//
// # Packing
//
// The packer processes rectangles tallest first (ties by width, then input
// order) and keeps a list of free rectangles ordered by width. Each item
// goes into the narrowest free rectangle that holds it; if none does, a new
// full-width strip is opened at the bottom of the bin. The consumed free
// rectangle is split into a right and a bottom remainder. Output depends only
// on the input order and the bin width.
//
// # Failures
//
// Per-image problems (unreadable headers, failed decodes) drop the image and
// are reported in [Drop] lists; they never abort a stage. Stage failures are
// returned as *errors.Error values carrying DIRECTORY_NOT_FOUND,
// EMPTY_INVENTORY, UNPACKABLE_RECTANGLE or ATLAS_TOO_LARGE.
package atlas
