package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fixmycity/platform/internal/complaint/domain"
	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/types"
)

// fakeRepository is an in-memory domain.Repository that mirrors the
// conditional-write semantics of the Postgres implementation.
type fakeRepository struct {
	mu         sync.Mutex
	complaints map[types.ID]*domain.Complaint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{complaints: make(map[types.ID]*domain.Complaint)}
}

func (f *fakeRepository) Save(ctx context.Context, c *domain.Complaint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *c
	f.complaints[c.ID] = &copied
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id types.ID) (*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.complaints[id]
	if !ok {
		return nil, errors.NotFound("complaint", id.String())
	}
	copied := *c
	return &copied, nil
}

func (f *fakeRepository) Update(ctx context.Context, c *domain.Complaint) error {
	return f.Save(ctx, c)
}

func (f *fakeRepository) Delete(ctx context.Context, id types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.complaints[id]; !ok {
		return errors.NotFound("complaint", id.String())
	}
	delete(f.complaints, id)
	return nil
}

func (f *fakeRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Complaint, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []domain.Complaint
	for _, c := range f.complaints {
		result = append(result, *c)
	}
	return result, len(result), nil
}

func (f *fakeRepository) FindByWorker(ctx context.Context, workerID types.ID, filter domain.ListFilter) ([]domain.Complaint, int, error) {
	return nil, 0, nil
}

func (f *fakeRepository) ActiveTaskCount(ctx context.Context, workerID types.ID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, c := range f.complaints {
		if c.AssignedWorker != nil && *c.AssignedWorker == workerID && c.Status.IsActive() {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) AssignIfPending(ctx context.Context, complaintID, workerID, adminID types.ID, maxTasks int, note string) (*domain.Complaint, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.complaints[complaintID]
	if !ok {
		return nil, 0, errors.NotFound("complaint", complaintID.String())
	}
	if err := c.Assign(workerID, adminID, note); err != nil {
		return nil, 0, errors.InvalidState(err.Error(), string(c.Status))
	}
	copied := *c
	return &copied, 1, nil
}

func (f *fakeRepository) SetPendingUpdate(ctx context.Context, c *domain.Complaint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.complaints[c.ID]
	if !ok {
		return errors.NotFound("complaint", c.ID.String())
	}
	if stored.PendingUpdate != nil {
		return errors.DuplicateRequest(c.ID.String())
	}
	copied := *c
	f.complaints[c.ID] = &copied
	return nil
}

func (f *fakeRepository) CompleteReview(ctx context.Context, c *domain.Complaint, entry *domain.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.complaints[c.ID]
	if !ok {
		return errors.NotFound("complaint", c.ID.String())
	}
	if stored.PendingUpdate == nil {
		return errors.InvalidState("no status change request is pending review", string(stored.Status))
	}
	copied := *c
	f.complaints[c.ID] = &copied
	return nil
}

func (f *fakeRepository) UpdateStatus(ctx context.Context, c *domain.Complaint, entry *domain.HistoryEntry) error {
	return f.Save(ctx, c)
}

// fakeCounters records synchronizer calls.
type fakeCounters struct {
	mu          sync.Mutex
	creates     int
	transitions []string
	deletes     int
}

func (f *fakeCounters) OnCreate(ctx context.Context, reporterID types.ID, initialStatus domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
}

func (f *fakeCounters) OnTransition(ctx context.Context, reporterID types.ID, oldStatus, newStatus domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, string(oldStatus)+"->"+string(newStatus))
}

func (f *fakeCounters) OnDelete(ctx context.Context, reporterID types.ID, status domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
}

func setup() (*Handler, *fakeRepository, *fakeCounters) {
	repo := newFakeRepository()
	counters := &fakeCounters{}
	return NewHandler(repo, counters, nil, nil), repo, counters
}

func doJSON(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func createComplaint(t *testing.T, h *Handler, reporterID types.ID) types.ID {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/", CreateComplaintRequest{
		ReporterID:  reporterID,
		Title:       "Overflowing garbage bin",
		Category:    "sanitation",
		City:        "Mumbai",
		District:    "Andheri",
		Pincode:     "400053",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var c domain.Complaint
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("Failed to decode complaint: %v", err)
	}
	return c.ID
}

func assignComplaint(t *testing.T, repo *fakeRepository, id, workerID types.ID) {
	t.Helper()

	if _, _, err := repo.AssignIfPending(context.Background(), id, workerID, types.NewID(), 4, "Assigned to worker (1/4 tasks)"); err != nil {
		t.Fatalf("Failed to assign: %v", err)
	}
}

func TestCreateComplaint(t *testing.T) {
	h, repo, counters := setup()
	reporterID := types.NewID()

	id := createComplaint(t, h, reporterID)

	c, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to find complaint: %v", err)
	}
	if c.Status != domain.StatusPending {
		t.Errorf("Expected status %s, got %s", domain.StatusPending, c.Status)
	}
	if counters.creates != 1 {
		t.Errorf("Expected 1 counter create, got %d", counters.creates)
	}
}

func TestStatusWorkflow(t *testing.T) {
	h, repo, counters := setup()
	reporterID := types.NewID()
	workerID := types.NewID()

	id := createComplaint(t, h, reporterID)
	assignComplaint(t, repo, id, workerID)

	// Worker proposes In Progress: pending record, status unchanged.
	rec := doJSON(t, h, http.MethodPost, "/"+id.String()+"/request-status", RequestStatusRequest{
		WorkerID:  workerID,
		NewStatus: domain.StatusInProgress,
		Remarks:   "starting today",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	c, _ := repo.FindByID(context.Background(), id)
	if c.Status != domain.StatusAssigned {
		t.Errorf("Expected status %s, got %s", domain.StatusAssigned, c.Status)
	}
	if c.PendingUpdate == nil {
		t.Fatal("Expected a pending update")
	}
	if c.WorkStartedAt == nil {
		t.Error("Expected work started timestamp")
	}

	// Admin approves: status moves, counters notified.
	rec = doJSON(t, h, http.MethodPost, "/"+id.String()+"/review-status", ReviewStatusRequest{Approve: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	c, _ = repo.FindByID(context.Background(), id)
	if c.Status != domain.StatusInProgress {
		t.Errorf("Expected status %s, got %s", domain.StatusInProgress, c.Status)
	}
	if c.PendingUpdate != nil {
		t.Error("Expected pending update to be cleared")
	}

	// Worker proposes Resolved; admin rejects with a note.
	rec = doJSON(t, h, http.MethodPost, "/"+id.String()+"/request-status", RequestStatusRequest{
		WorkerID:  workerID,
		NewStatus: domain.StatusResolved,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/"+id.String()+"/review-status", ReviewStatusRequest{
		Approve:   false,
		AdminNote: "insufficient evidence",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	c, _ = repo.FindByID(context.Background(), id)
	if c.Status != domain.StatusInProgress {
		t.Errorf("Expected status to remain %s, got %s", domain.StatusInProgress, c.Status)
	}
	if c.PendingUpdate != nil {
		t.Error("Expected pending update to be cleared after reject")
	}

	// Only the approved transition reached the counters.
	if len(counters.transitions) != 1 || counters.transitions[0] != "Assigned->In Progress" {
		t.Errorf("Expected one approved transition, got %v", counters.transitions)
	}
}

func TestRequestStatusChangeErrors(t *testing.T) {
	h, repo, _ := setup()
	reporterID := types.NewID()
	workerID := types.NewID()

	id := createComplaint(t, h, reporterID)

	t.Run("unassigned complaint", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/"+id.String()+"/request-status", RequestStatusRequest{
			WorkerID:  workerID,
			NewStatus: domain.StatusInProgress,
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rec.Code)
		}
	})

	assignComplaint(t, repo, id, workerID)

	t.Run("wrong worker", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/"+id.String()+"/request-status", RequestStatusRequest{
			WorkerID:  types.NewID(),
			NewStatus: domain.StatusInProgress,
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rec.Code)
		}
	})

	t.Run("duplicate request", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/"+id.String()+"/request-status", RequestStatusRequest{
			WorkerID:  workerID,
			NewStatus: domain.StatusInProgress,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}

		rec = doJSON(t, h, http.MethodPost, "/"+id.String()+"/request-status", RequestStatusRequest{
			WorkerID:  workerID,
			NewStatus: domain.StatusResolved,
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", rec.Code)
		}
	})
}

func TestReviewWithoutRequest(t *testing.T) {
	h, _, _ := setup()
	id := createComplaint(t, h, types.NewID())

	rec := doJSON(t, h, http.MethodPost, "/"+id.String()+"/review-status", ReviewStatusRequest{Approve: true})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rec.Code)
	}
}

func TestSetStatusDirect(t *testing.T) {
	h, repo, counters := setup()
	workerID := types.NewID()

	id := createComplaint(t, h, types.NewID())
	assignComplaint(t, repo, id, workerID)

	rec := doJSON(t, h, http.MethodPost, "/"+id.String()+"/status", SetStatusRequest{
		Status: domain.StatusResolved,
		Note:   "resolved during field audit",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	c, _ := repo.FindByID(context.Background(), id)
	if c.Status != domain.StatusResolved {
		t.Errorf("Expected status %s, got %s", domain.StatusResolved, c.Status)
	}
	if len(counters.transitions) != 1 || counters.transitions[0] != "Assigned->Resolved" {
		t.Errorf("Expected direct transition in counters, got %v", counters.transitions)
	}
}

func TestDeleteComplaintRollsBackCounters(t *testing.T) {
	h, _, counters := setup()
	id := createComplaint(t, h, types.NewID())

	rec := doJSON(t, h, http.MethodDelete, "/"+id.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rec.Code)
	}

	if counters.deletes != 1 {
		t.Errorf("Expected 1 counter delete, got %d", counters.deletes)
	}
}
