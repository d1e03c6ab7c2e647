package status

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/thumbatlas/pkg/errors"
)

// Sink receives progress from a running pipeline.
type Sink interface {
	// Report records progress within the current phase.
	Report(ctx context.Context, phase Phase, percent int, message string)

	// Complete marks the run as finished successfully.
	Complete(ctx context.Context, message string)

	// Fail marks the run as failed with err's message.
	Fail(ctx context.Context, err error)
}

// Reporter is the Sink for one run. It is safe for concurrent use.
type Reporter struct {
	mu     sync.Mutex
	store  Store
	logger *log.Logger
	now    func() time.Time
	cur    Status
}

// NewReporter creates a reporter for runID that saves into store. A nil
// logger discards output.
func NewReporter(store Store, runID string, logger *log.Logger) *Reporter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Reporter{
		store:  store,
		logger: logger,
		now:    time.Now,
		cur:    Status{Status: StateUnknown, RunID: runID},
	}
}

// Start resets the record to in_progress at 0%. Unlike the Sink methods it
// returns the store error, since a run that cannot record its start should
// not proceed.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur.Status = StateInProgress
	r.cur.Phase = PhaseInit
	r.cur.Progress = 0
	r.cur.Message = MessageStarting
	r.stamp()
	return r.store.Put(ctx, clone(r.cur))
}

// Report clamps percent to [0, 100] and to no less than the last reported
// value. Calls after the run ended are ignored with a warning.
func (r *Reporter) Report(ctx context.Context, phase Phase, percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur.Status.Terminal() {
		r.logger.Warn("status update after run ended", "run", r.cur.RunID, "phase", phase, "message", message)
		return
	}
	r.cur.Status = StateInProgress
	r.cur.Phase = phase
	r.cur.Progress = max(r.cur.Progress, min(100, max(0, percent)))
	r.cur.Message = message
	r.save(ctx)
}

// Complete sets progress to 100 and the state to complete.
func (r *Reporter) Complete(ctx context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur.Status.Terminal() {
		r.logger.Warn("duplicate completion ignored", "run", r.cur.RunID, "state", r.cur.Status)
		return
	}
	r.cur.Status = StateComplete
	r.cur.Phase = PhaseComplete
	r.cur.Progress = 100
	r.cur.Message = message
	r.save(ctx)
}

// Fail sets the state to error with the message "Error: <err>". Progress
// and phase keep the values reached before the failure.
func (r *Reporter) Fail(ctx context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur.Status.Terminal() {
		r.logger.Warn("failure after run ended ignored", "run", r.cur.RunID, "err", err)
		return
	}
	msg := "unknown failure"
	if err != nil {
		msg = errors.UserMessage(err)
	}
	r.cur.Status = StateError
	r.cur.Message = "Error: " + msg
	r.save(ctx)
}

// Snapshot returns the current record.
func (r *Reporter) Snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.cur)
}

// stamp sets lastUpdated, nudging it forward when the clock did not advance.
func (r *Reporter) stamp() {
	t := r.now().UTC()
	if last := r.cur.LastUpdated; last != nil && !t.After(*last) {
		t = last.Add(time.Nanosecond)
	}
	r.cur.LastUpdated = &t
}

// save stamps and stores the record. Store failures are logged; the run
// keeps going with the in-memory record.
func (r *Reporter) save(ctx context.Context) {
	r.stamp()
	if err := r.store.Put(ctx, clone(r.cur)); err != nil {
		r.logger.Warn("save status", "run", r.cur.RunID, "err", err)
	}
}

var _ Sink = (*Reporter)(nil)
