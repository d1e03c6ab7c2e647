// Package pkg provides the core libraries for thumbatlas texture atlas
// generation.
//
// # Overview
//
// Thumbatlas turns a directory of images (tens of thousands of thumbnails)
// into a single PNG atlas plus a JSON coordinate map, for viewers that draw
// every image as an instance of one GPU texture. The pkg directory is
// organized into four main areas:
//
//  1. [atlas] - Domain logic (scan, normalize, pack, correct, composite)
//  2. [pipeline] - Orchestration (scan → layout → render) with status and history
//  3. [status], [history], [cache] - Infrastructure backends
//  4. [server] - HTTP trigger and status API
//
// # Architecture
//
// The data flow through a generation run:
//
//	Image directory
//	       ↓
//	  [atlas.Scanner] (list allowed files, read sizes from headers)
//	       ↓
//	  [atlas.Normalize] (global dimension cap, per-image downscale)
//	       ↓
//	  [atlas.Packer] (fixed-width bin, best-fit free rectangles)
//	       ↓
//	  [atlas.Correct] (uniform scale when the bin exceeds the limits)
//	       ↓
//	  [atlas.Compositor] (bounded pool draws onto a transparent canvas)
//	       ↓
//	  [io] (atlas.png + atlas.json, each replaced atomically)
//
// Every stage reports progress through a [status.Sink]; the latest record
// lives in a [status.Store] (memory, file or Redis) and is served by
// [status.Reader], which reclassifies abandoned runs.
//
// # Quick Start
//
//	cfg, _ := config.Load("")
//	opts, _ := pipeline.OptionsFromConfig(cfg)
//	runner := pipeline.NewRunner(nil, nil, nil, nil, logger)
//	result, err := runner.Execute(ctx, opts)
//
// # Main Packages
//
// [atlas] - Packing and compositing. Deterministic for a given input set:
// the same directory always yields the same layout.
//
// [pipeline] - Runner with a single-run guard, milestone progress and run
// history. Used by both the CLI and the server.
//
// [status] - Status record, reporter (monotonic progress, write-once
// terminal state), stores and the staleness-aware reader.
//
// [history] - Run records in memory or MongoDB.
//
// [cache] - Dimension probe cache keyed by path, size and mtime.
//
// [workpool] - Bounded worker pool with per-item error aggregation.
//
// [io] - Coordinate map and PNG persistence.
//
// [config] - TOML configuration with environment overrides.
//
// [errors] - Error codes shared by every package.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/atlas/...              # Specific package
//	go test -run Example                 # Examples only
//	go test -tags integration ./pkg/...  # Include Redis and MongoDB tests
//
// [atlas]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/atlas
// [atlas.Scanner]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/atlas#Scanner
// [atlas.Normalize]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/atlas#Normalize
// [atlas.Packer]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/atlas#Packer
// [atlas.Correct]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/atlas#Correct
// [atlas.Compositor]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/atlas#Compositor
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/pipeline
// [status]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/status
// [status.Sink]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/status#Sink
// [status.Store]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/status#Store
// [status.Reader]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/status#Reader
// [history]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/history
// [cache]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/cache
// [workpool]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/workpool
// [io]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/io
// [config]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/errors
// [server]: https://pkg.go.dev/github.com/matzehuels/thumbatlas/pkg/server
package pkg
