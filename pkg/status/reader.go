package status

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultStaleAfter is how long an in_progress record may go without an
// update before the reader stops trusting it.
const DefaultStaleAfter = 30 * time.Second

// Reader serves status queries.
type Reader struct {
	Store Store

	// StaleAfter overrides DefaultStaleAfter when positive.
	StaleAfter time.Duration

	// Artifacts are the outputs of a successful run. A stale record is
	// reclassified as complete only if all of them exist.
	Artifacts []string

	// Live, if set, reports whether a run is active in this process. Live
	// runs are never considered stale.
	Live func() bool

	Logger *log.Logger

	now func() time.Time
}

// Read returns the current record.
//
// With no stored record it returns [Unknown]. An in_progress record older
// than the stale window is rewritten as complete (progress 100) when every
// artifact exists, and as error otherwise. The rewritten record is saved.
func (r *Reader) Read(ctx context.Context) (Status, error) {
	st, ok, err := r.Store.Get(ctx)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Unknown(), nil
	}
	if st.Status != StateInProgress || (r.Live != nil && r.Live()) {
		return st, nil
	}

	now := r.currentTime().UTC()
	if st.LastUpdated != nil && st.Since(now) <= r.staleAfter() {
		return st, nil
	}

	if r.artifactsExist() {
		st.Status = StateComplete
		st.Phase = PhaseComplete
		st.Progress = 100
		st.Message = MessageComplete
	} else {
		st.Status = StateError
		st.Message = MessageTimedOut
	}
	if st.LastUpdated == nil || now.After(*st.LastUpdated) {
		st.LastUpdated = &now
	}

	r.logger().Warn("reclassified stale run", "run", st.RunID, "status", st.Status)
	if err := r.Store.Put(ctx, st); err != nil {
		r.logger().Warn("save reclassified status", "err", err)
	}
	return st, nil
}

func (r *Reader) artifactsExist() bool {
	if len(r.Artifacts) == 0 {
		return false
	}
	for _, path := range r.Artifacts {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

func (r *Reader) staleAfter() time.Duration {
	if r.StaleAfter > 0 {
		return r.StaleAfter
	}
	return DefaultStaleAfter
}

func (r *Reader) currentTime() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *Reader) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.New(io.Discard)
}
