package dashboard

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/fixmycity/platform/internal/complaint/domain"
	"github.com/fixmycity/platform/internal/shared/types"
)

// fakeStore is an in-memory CounterStore that mirrors the clamping
// semantics of the Postgres upsert.
type fakeStore struct {
	mu       sync.Mutex
	counters map[types.ID]*Counters
	failNext bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{counters: make(map[types.ID]*Counters)}
}

func (f *fakeStore) Get(ctx context.Context, reporterID types.ID) (*Counters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[reporterID]; ok {
		copied := *c
		return &copied, nil
	}
	return &Counters{ReporterID: reporterID}, nil
}

func (f *fakeStore) ApplyDelta(ctx context.Context, reporterID types.ID, delta Delta) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext {
		f.failNext = false
		return fmt.Errorf("store unavailable")
	}

	c, ok := f.counters[reporterID]
	if !ok {
		c = &Counters{ReporterID: reporterID}
		f.counters[reporterID] = c
	}

	c.Total = clamp(c.Total + delta.Total)
	c.Pending = clamp(c.Pending + delta.Pending)
	c.InProgress = clamp(c.InProgress + delta.InProgress)
	c.Resolved = clamp(c.Resolved + delta.Resolved)
	c.Rejected = clamp(c.Rejected + delta.Rejected)
	return nil
}

func (f *fakeStore) Recompute(ctx context.Context, reporterID types.ID) error {
	return nil
}

func (f *fakeStore) ListReporterIDs(ctx context.Context) ([]types.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []types.ID
	for id := range f.counters {
		ids = append(ids, id)
	}
	return ids, nil
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func assertCounters(t *testing.T, store *fakeStore, reporterID types.ID, want Counters) {
	t.Helper()

	got, err := store.Get(context.Background(), reporterID)
	if err != nil {
		t.Fatalf("Failed to get counters: %v", err)
	}
	if got.Total != want.Total {
		t.Errorf("Expected total %d, got %d", want.Total, got.Total)
	}
	if got.Pending != want.Pending {
		t.Errorf("Expected pending %d, got %d", want.Pending, got.Pending)
	}
	if got.InProgress != want.InProgress {
		t.Errorf("Expected in_progress %d, got %d", want.InProgress, got.InProgress)
	}
	if got.Resolved != want.Resolved {
		t.Errorf("Expected resolved %d, got %d", want.Resolved, got.Resolved)
	}
	if got.Rejected != want.Rejected {
		t.Errorf("Expected rejected %d, got %d", want.Rejected, got.Rejected)
	}
}

func TestSynchronizerLifecycle(t *testing.T) {
	store := newFakeStore()
	sync := NewSynchronizer(store, zap.NewNop())
	ctx := context.Background()
	reporterID := types.NewID()

	// Three complaints: one stays Pending, one ends up Assigned, one is
	// worked through to Resolved. Assigned occupies no bucket, so the
	// end aggregate counts it in total only.
	sync.OnCreate(ctx, reporterID, domain.StatusPending)
	sync.OnCreate(ctx, reporterID, domain.StatusPending)
	sync.OnCreate(ctx, reporterID, domain.StatusPending)

	sync.OnTransition(ctx, reporterID, domain.StatusPending, domain.StatusAssigned)

	sync.OnTransition(ctx, reporterID, domain.StatusPending, domain.StatusAssigned)
	sync.OnTransition(ctx, reporterID, domain.StatusAssigned, domain.StatusInProgress)
	sync.OnTransition(ctx, reporterID, domain.StatusInProgress, domain.StatusResolved)

	assertCounters(t, store, reporterID, Counters{
		Total:    3,
		Pending:  1,
		Resolved: 1,
	})
}

func TestSynchronizerDelete(t *testing.T) {
	store := newFakeStore()
	sync := NewSynchronizer(store, zap.NewNop())
	ctx := context.Background()
	reporterID := types.NewID()

	sync.OnCreate(ctx, reporterID, domain.StatusPending)
	sync.OnDelete(ctx, reporterID, domain.StatusPending)

	assertCounters(t, store, reporterID, Counters{})
}

func TestSynchronizerClampsAtZero(t *testing.T) {
	store := newFakeStore()
	sync := NewSynchronizer(store, zap.NewNop())
	ctx := context.Background()
	reporterID := types.NewID()

	// Deleting with no prior create must not drive buckets negative.
	sync.OnDelete(ctx, reporterID, domain.StatusResolved)

	assertCounters(t, store, reporterID, Counters{})
}

func TestSynchronizerTransitionKeepsTotal(t *testing.T) {
	store := newFakeStore()
	sync := NewSynchronizer(store, zap.NewNop())
	ctx := context.Background()
	reporterID := types.NewID()

	sync.OnCreate(ctx, reporterID, domain.StatusPending)
	sync.OnTransition(ctx, reporterID, domain.StatusPending, domain.StatusAssigned)
	sync.OnTransition(ctx, reporterID, domain.StatusAssigned, domain.StatusInProgress)

	assertCounters(t, store, reporterID, Counters{Total: 1, InProgress: 1})
}

func TestSynchronizerFailureIsSwallowed(t *testing.T) {
	store := newFakeStore()
	sync := NewSynchronizer(store, zap.NewNop())
	ctx := context.Background()
	reporterID := types.NewID()

	// A failing store must not panic or propagate; the caller's
	// complaint write already succeeded.
	store.failNext = true
	sync.OnCreate(ctx, reporterID, domain.StatusPending)

	// The next delta still lands.
	sync.OnCreate(ctx, reporterID, domain.StatusPending)
	assertCounters(t, store, reporterID, Counters{Total: 1, Pending: 1})
}

func TestBucketDelta(t *testing.T) {
	tests := []struct {
		status domain.Status
		want   Delta
	}{
		{domain.StatusPending, Delta{Pending: 1}},
		{domain.StatusInProgress, Delta{InProgress: 1}},
		{domain.StatusResolved, Delta{Resolved: 1}},
		{domain.StatusRejected, Delta{Rejected: 1}},
		{domain.StatusAssigned, Delta{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := bucketDelta(tt.status, 1); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}
