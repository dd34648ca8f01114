package internal

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/fixmycity/platform/internal/complaint/domain"
	"github.com/fixmycity/platform/internal/dashboard"
	"github.com/fixmycity/platform/internal/shared/types"
)

// memoryStore is an in-memory counter store for cross-module tests.
type memoryStore struct {
	mu       sync.Mutex
	counters map[types.ID]dashboard.Counters
}

func newMemoryStore() *memoryStore {
	return &memoryStore{counters: make(map[types.ID]dashboard.Counters)}
}

func (m *memoryStore) Get(ctx context.Context, reporterID types.ID) (*dashboard.Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counters[reporterID]
	c.ReporterID = reporterID
	return &c, nil
}

func (m *memoryStore) ApplyDelta(ctx context.Context, reporterID types.ID, delta dashboard.Delta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counters[reporterID]
	c.Total = clamp(c.Total + delta.Total)
	c.Pending = clamp(c.Pending + delta.Pending)
	c.InProgress = clamp(c.InProgress + delta.InProgress)
	c.Resolved = clamp(c.Resolved + delta.Resolved)
	c.Rejected = clamp(c.Rejected + delta.Rejected)
	m.counters[reporterID] = c
	return nil
}

func (m *memoryStore) Recompute(ctx context.Context, reporterID types.ID) error {
	return nil
}

func (m *memoryStore) ListReporterIDs(ctx context.Context) ([]types.ID, error) {
	return nil, nil
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// TestComplaintWorkflow walks a complaint through its full lifecycle:
// filing, assignment, the worker's proposals, the admin's reviews, and
// the reporter counters tracking every approved change.
func TestComplaintWorkflow(t *testing.T) {
	ctx := context.Background()
	reporterID := types.NewID()
	workerID := types.NewID()
	adminID := types.NewID()
	region := types.Region{City: "Mumbai", District: "Andheri", Pincode: "400053"}

	store := newMemoryStore()
	syncer := dashboard.NewSynchronizer(store, zap.NewNop())

	// 1. Reporter files a complaint
	c, err := domain.NewComplaint(reporterID, "Broken streetlight", "Pole 14 is dark", "electricity", region)
	if err != nil {
		t.Fatalf("Failed to create complaint: %v", err)
	}
	if c.Status != domain.StatusPending {
		t.Errorf("New complaint should be pending, got %s", c.Status)
	}
	syncer.OnCreate(ctx, reporterID, c.Status)

	// 2. Admin assigns a worker
	if err := c.Assign(workerID, adminID, "Assigned to Asha (1/4 tasks)"); err != nil {
		t.Fatalf("Failed to assign: %v", err)
	}
	syncer.OnTransition(ctx, reporterID, domain.StatusPending, domain.StatusAssigned)

	// 3. Worker proposes In Progress; status holds until review
	if err := c.RequestStatusChange(workerID, domain.StatusInProgress, "starting today"); err != nil {
		t.Fatalf("Failed to request status change: %v", err)
	}
	if c.Status != domain.StatusAssigned {
		t.Errorf("Status should hold at %s until review, got %s", domain.StatusAssigned, c.Status)
	}
	if c.WorkStartedAt == nil {
		t.Error("Work started timestamp should be stamped at request time")
	}

	// 4. Admin approves
	oldStatus, newStatus, err := c.ApplyReview(adminID, true, "")
	if err != nil {
		t.Fatalf("Failed to apply review: %v", err)
	}
	syncer.OnTransition(ctx, reporterID, oldStatus, newStatus)
	if c.Status != domain.StatusInProgress {
		t.Errorf("Expected status %s, got %s", domain.StatusInProgress, c.Status)
	}

	// 5. Worker proposes Resolved; admin rejects
	if err := c.RequestStatusChange(workerID, domain.StatusResolved, "fixed"); err != nil {
		t.Fatalf("Failed to request resolution: %v", err)
	}
	if c.WorkCompletedAt == nil {
		t.Error("Work completed timestamp should be stamped at request time")
	}

	oldStatus, newStatus, err = c.ApplyReview(adminID, false, "lamp still flickers")
	if err != nil {
		t.Fatalf("Failed to reject review: %v", err)
	}
	if oldStatus != newStatus {
		t.Error("Rejection should not move the status")
	}
	if c.PendingUpdate != nil {
		t.Error("Rejection should clear the pending request")
	}

	// 6. Second attempt approved
	if err := c.RequestStatusChange(workerID, domain.StatusResolved, "replaced the lamp"); err != nil {
		t.Fatalf("Failed to re-request resolution: %v", err)
	}
	oldStatus, newStatus, err = c.ApplyReview(adminID, true, "verified on site")
	if err != nil {
		t.Fatalf("Failed to approve review: %v", err)
	}
	syncer.OnTransition(ctx, reporterID, oldStatus, newStatus)
	if c.Status != domain.StatusResolved {
		t.Errorf("Expected status %s, got %s", domain.StatusResolved, c.Status)
	}

	// Counters reflect the approved transitions only
	counters, err := store.Get(ctx, reporterID)
	if err != nil {
		t.Fatalf("Failed to get counters: %v", err)
	}
	if counters.Total != 1 {
		t.Errorf("Expected total 1, got %d", counters.Total)
	}
	if counters.Pending != 0 {
		t.Errorf("Expected pending 0, got %d", counters.Pending)
	}
	if counters.InProgress != 0 {
		t.Errorf("Expected in progress 0, got %d", counters.InProgress)
	}
	if counters.Resolved != 1 {
		t.Errorf("Expected resolved 1, got %d", counters.Resolved)
	}

	// History carries the complete trail
	if len(c.History) != 5 {
		t.Errorf("Expected 5 history entries, got %d", len(c.History))
	}
	last := c.LatestHistory()
	if last == nil || last.Status != domain.StatusResolved {
		t.Error("Latest history entry should record the resolution")
	}
}
