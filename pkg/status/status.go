// Package status tracks the progress of atlas generation runs.
//
// A run reports through a [Sink], normally a [Reporter], which keeps the
// record consistent: progress is clamped to [0, 100] and never decreases,
// lastUpdated strictly increases, and the terminal state is written once.
// Every accepted update is saved to a [Store], which owns the latest
// snapshot. Pollers read through a [Reader], which also recovers records
// left in_progress by a writer that died mid-run.
package status

import "time"

// State is the coarse state of the latest run.
type State string

const (
	StateUnknown    State = "unknown"
	StateInProgress State = "in_progress"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError
}

// Phase names the stage a run is in.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseScan       Phase = "scan"
	PhaseDimensions Phase = "dimensions"
	PhaseNormalize  Phase = "normalize"
	PhasePack       Phase = "pack"
	PhaseCanvas     Phase = "canvas"
	PhaseComposite  Phase = "composite"
	PhaseEncode     Phase = "encode"
	PhaseSave       Phase = "save"
	PhaseComplete   Phase = "complete"
)

// Messages shared by writers and the reader.
const (
	MessageIdle     = "No atlas generation in progress"
	MessageStarting = "Starting atlas generation..."
	MessageComplete = "Atlas generation complete!"
	MessageTimedOut = "Atlas generation timed out or failed"
)

// Status is the record returned to pollers.
type Status struct {
	Status      State      `json:"status"`
	Phase       Phase      `json:"phase,omitempty"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	LastUpdated *time.Time `json:"lastUpdated"`
	RunID       string     `json:"runId,omitempty"`
}

// Unknown is the record reported before any run was recorded.
func Unknown() Status {
	return Status{Status: StateUnknown, Message: MessageIdle}
}

// Since returns how long ago the record was updated, or 0 if it never was.
func (s Status) Since(now time.Time) time.Duration {
	if s.LastUpdated == nil {
		return 0
	}
	return now.Sub(*s.LastUpdated)
}
