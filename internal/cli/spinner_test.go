package cli

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/thumbatlas/pkg/status"
)

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerWithContext(ctx, "Generating atlas...")
	s.Start()
	cancel()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("spinner should be cancelled after context cancellation")
	}
	s.Stop()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner("Generating atlas...")
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithMessage(t *testing.T) {
	s := newSpinner("Generating atlas...")
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.StopWithSuccess("Done")

	s = newSpinner("Generating atlas...")
	s.Start()
	s.StopWithError("Failed")
}

func TestSpinnerFollowsStatus(t *testing.T) {
	ctx := context.Background()
	store := status.NewMemoryStore()
	s := newSpinner("Generating atlas...").follow(store)

	if got := s.line(); got != "Generating atlas..." {
		t.Errorf("line() with empty store = %q", got)
	}

	now := time.Now()
	_ = store.Put(ctx, status.Status{Status: status.StateInProgress, Progress: 45, Message: "Creating canvas...", LastUpdated: &now})
	if got, want := s.line(), " 45% Creating canvas..."; got != want {
		t.Errorf("line() = %q, want %q", got, want)
	}

	_ = store.Put(ctx, status.Status{Status: status.StateComplete, Progress: 100, Message: status.MessageComplete, LastUpdated: &now})
	if got := s.line(); got != "Generating atlas..." {
		t.Errorf("line() after completion = %q", got)
	}
}
