//go:build integration

package status

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("THUMBATLAS_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := "thumbatlas:test:" + uuid.NewString()
	s, err := NewRedisStore(ctx, addr, key)
	if err != nil {
		t.Fatalf("NewRedisStore() error: %v", err)
	}
	defer func() {
		s.client.Del(context.Background(), key)
		s.Close()
	}()

	if _, ok, err := s.Get(ctx); ok || err != nil {
		t.Fatalf("fresh key: ok=%v err=%v", ok, err)
	}

	r := NewReporter(s, "run-1", nil)
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	r.Report(ctx, PhasePack, 40, "Packing")

	got, ok, err := s.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Progress != 40 || got.Phase != PhasePack || got.RunID != "run-1" {
		t.Errorf("Get() = %+v", got)
	}
}
