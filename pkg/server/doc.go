// Package server exposes atlas generation over HTTP.
//
// The surface is deliberately thin: one trigger, one status query, the two
// artifacts and the run history.
//
//	POST /api/atlas              start a run, 202 Accepted with its id
//	GET  /api/atlas/status       current status record
//	GET  /api/atlas/image        the atlas PNG
//	GET  /api/atlas/coordinates  the coordinate map
//	GET  /api/atlas/runs         recent runs, newest first (?limit=N)
//	GET  /healthz                liveness
//
// A trigger returns as soon as the run is accepted; the run continues in
// the background and clients poll the status endpoint. A trigger while a
// run is active is answered with 409 Conflict.
//
// Errors are JSON objects of the form {"error": "...", "code": "..."} with
// the status code chosen by [StatusCode].
package server
