// Package history records finished atlas generation runs.
//
// The status record only describes the latest run; history keeps one
// [Run] per invocation so operators can compare sizes, drop counts and
// timings across runs. Backends: [MemoryStore] for tests and single
// processes, [MongoStore] for shared deployments, and [NullStore] when
// history is disabled.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/matzehuels/thumbatlas/pkg/status"
)

// DefaultLimit is the number of runs returned when no limit is given.
const DefaultLimit = 20

// Run summarizes one generation run.
type Run struct {
	ID         string       `json:"id" bson:"_id"`
	State      status.State `json:"status" bson:"status"`
	Message    string       `json:"message" bson:"message"`
	ErrorCode  string       `json:"errorCode,omitempty" bson:"error_code,omitempty"`
	StartedAt  time.Time    `json:"startedAt" bson:"started_at"`
	FinishedAt time.Time    `json:"finishedAt" bson:"finished_at"`

	ImagesDir string `json:"imagesDir" bson:"images_dir"`

	Candidates int `json:"candidates" bson:"candidates"`
	Readable   int `json:"readable" bson:"readable"`
	Composited int `json:"composited" bson:"composited"`
	Dropped    int `json:"dropped" bson:"dropped"`

	DimensionCap int     `json:"dimensionCap,omitempty" bson:"dimension_cap,omitempty"`
	AtlasWidth   int     `json:"atlasWidth,omitempty" bson:"atlas_width,omitempty"`
	AtlasHeight  int     `json:"atlasHeight,omitempty" bson:"atlas_height,omitempty"`
	Scale        float64 `json:"scale,omitempty" bson:"scale,omitempty"`
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists runs.
type Store interface {
	// Record inserts or replaces the run with r.ID.
	Record(ctx context.Context, r Run) error

	// List returns up to limit runs, newest first. A limit <= 0 means
	// DefaultLimit.
	List(ctx context.Context, limit int) ([]Run, error)

	// Close releases backend resources.
	Close() error
}

// =============================================================================
// Memory
// =============================================================================

// MemoryStore keeps the most recent runs in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	runs     []Run
	capacity int
}

// NewMemoryStore keeps up to capacity runs; capacity <= 0 means 100.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) Record(_ context.Context, r Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == r.ID {
			m.runs[i] = r
			return nil
		}
	}
	m.runs = append(m.runs, r)
	sort.SliceStable(m.runs, func(a, b int) bool {
		return m.runs[a].StartedAt.After(m.runs[b].StartedAt)
	})
	if len(m.runs) > m.capacity {
		m.runs = m.runs[:m.capacity]
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = DefaultLimit
	}
	n := min(limit, len(m.runs))
	out := make([]Run, n)
	copy(out, m.runs[:n])
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// =============================================================================
// Null
// =============================================================================

// NullStore discards runs.
type NullStore struct{}

func (NullStore) Record(context.Context, Run) error { return nil }

func (NullStore) List(context.Context, int) ([]Run, error) { return nil, nil }

func (NullStore) Close() error { return nil }

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = NullStore{}
)
