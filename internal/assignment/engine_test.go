package assignment

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/fixmycity/platform/internal/complaint/domain"
	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/types"
	"github.com/fixmycity/platform/internal/worker"
)

// fakeComplaints is an in-memory ComplaintStore whose AssignIfPending
// mirrors the conditional-write semantics of the Postgres repository.
type fakeComplaints struct {
	mu         sync.Mutex
	complaints map[types.ID]*domain.Complaint
	lastNote   string
}

func newFakeComplaints() *fakeComplaints {
	return &fakeComplaints{complaints: make(map[types.ID]*domain.Complaint)}
}

func (f *fakeComplaints) add(c *domain.Complaint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complaints[c.ID] = c
}

func (f *fakeComplaints) FindByID(ctx context.Context, id types.ID) (*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.complaints[id]
	if !ok {
		return nil, errors.NotFound("complaint", id.String())
	}
	copied := *c
	return &copied, nil
}

func (f *fakeComplaints) ActiveTaskCount(ctx context.Context, workerID types.ID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeCountLocked(workerID), nil
}

func (f *fakeComplaints) activeCountLocked(workerID types.ID) int {
	count := 0
	for _, c := range f.complaints {
		if c.AssignedWorker != nil && *c.AssignedWorker == workerID && c.Status.IsActive() {
			count++
		}
	}
	return count
}

func (f *fakeComplaints) AssignIfPending(ctx context.Context, complaintID, workerID, adminID types.ID, maxTasks int, note string) (*domain.Complaint, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.complaints[complaintID]
	if !ok {
		return nil, 0, errors.NotFound("complaint", complaintID.String())
	}
	if c.Status != domain.StatusPending {
		return nil, 0, errors.InvalidState("complaint is not pending assignment", string(c.Status))
	}

	count := f.activeCountLocked(workerID)
	if count >= maxTasks {
		return nil, 0, errors.AtCapacity(workerID.String(), count, maxTasks)
	}

	c.Status = domain.StatusAssigned
	c.AssignedWorker = &workerID
	c.AssignedBy = &adminID
	f.lastNote = note

	copied := *c
	return &copied, count + 1, nil
}

// fakeWorkers is an in-memory WorkerStore.
type fakeWorkers struct {
	workers map[types.ID]*worker.Worker
}

func newFakeWorkers() *fakeWorkers {
	return &fakeWorkers{workers: make(map[types.ID]*worker.Worker)}
}

func (f *fakeWorkers) Get(ctx context.Context, id types.ID) (*worker.Worker, error) {
	w, ok := f.workers[id]
	if !ok {
		return nil, errors.NotFound("worker", id.String())
	}
	copied := *w
	return &copied, nil
}

func (f *fakeWorkers) ListActiveInRegion(ctx context.Context, region types.Region) ([]worker.Worker, error) {
	var result []worker.Worker
	for _, w := range f.workers {
		if w.IsActive() && w.Region.Equals(region) {
			result = append(result, *w)
		}
	}
	return result, nil
}

// fakeAttendance maps workers to their assignability verdict.
type fakeAttendance struct {
	verdicts map[types.ID]error
}

func newFakeAttendance() *fakeAttendance {
	return &fakeAttendance{verdicts: make(map[types.ID]error)}
}

func (f *fakeAttendance) CheckAssignable(ctx context.Context, workerID types.ID) error {
	if err, ok := f.verdicts[workerID]; ok {
		return err
	}
	return errors.NotOnDuty(workerID.String(), "never checked in")
}

func (f *fakeAttendance) IsAssignable(ctx context.Context, workerID types.ID) (bool, error) {
	return f.CheckAssignable(ctx, workerID) == nil, nil
}

func (f *fakeAttendance) OnLeaveToday(ctx context.Context, workerID types.ID) (bool, error) {
	return errors.Is(f.verdicts[workerID], errors.ErrOnLeave), nil
}

// fakeSync records counter transitions.
type fakeSync struct {
	mu          sync.Mutex
	transitions []string
}

func (f *fakeSync) OnTransition(ctx context.Context, reporterID types.ID, oldStatus, newStatus domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, string(oldStatus)+"->"+string(newStatus))
}

type fixture struct {
	engine     *Engine
	complaints *fakeComplaints
	workers    *fakeWorkers
	attendance *fakeAttendance
	sync       *fakeSync
}

func newFixture() *fixture {
	complaints := newFakeComplaints()
	workers := newFakeWorkers()
	attendance := newFakeAttendance()
	counterSync := &fakeSync{}

	return &fixture{
		engine:     NewEngine(complaints, workers, attendance, counterSync, nil, 4),
		complaints: complaints,
		workers:    workers,
		attendance: attendance,
		sync:       counterSync,
	}
}

func mumbai() types.Region {
	return types.Region{City: "Mumbai", District: "Andheri", Pincode: "400053"}
}

func (f *fixture) addWorker(t *testing.T, region types.Region, onDuty bool) types.ID {
	t.Helper()

	id := types.NewID()
	f.workers.workers[id] = &worker.Worker{
		ID:     id,
		Name:   "Asha",
		Email:  id.String() + "@fixmycity.in",
		Region: region,
		Status: worker.StatusActive,
	}
	if onDuty {
		f.attendance.verdicts[id] = nil
	}
	return id
}

func (f *fixture) addPendingComplaint(t *testing.T, region types.Region) *domain.Complaint {
	t.Helper()

	c, err := domain.NewComplaint(types.NewID(), "Pothole on main road", "", "road", region)
	if err != nil {
		t.Fatalf("Failed to create complaint: %v", err)
	}
	f.complaints.add(c)
	return c
}

func (f *fixture) addActiveTask(t *testing.T, workerID types.ID, region types.Region) {
	t.Helper()

	c := f.addPendingComplaint(t, region)
	f.complaints.mu.Lock()
	c.Status = domain.StatusAssigned
	c.AssignedWorker = &workerID
	f.complaints.mu.Unlock()
}

func TestAssignSuccess(t *testing.T) {
	f := newFixture()
	workerID := f.addWorker(t, mumbai(), true)
	c := f.addPendingComplaint(t, mumbai())
	adminID := types.NewID()

	updated, occupancy, err := f.engine.Assign(context.Background(), c.ID, workerID, adminID)
	if err != nil {
		t.Fatalf("Failed to assign: %v", err)
	}

	if updated.Status != domain.StatusAssigned {
		t.Errorf("Expected status %s, got %s", domain.StatusAssigned, updated.Status)
	}
	if occupancy.Current != 1 || occupancy.Max != 4 || occupancy.Remaining != 3 {
		t.Errorf("Expected occupancy {1 4 3}, got %+v", occupancy)
	}
	if !strings.Contains(f.complaints.lastNote, "(1/4 tasks)") {
		t.Errorf("Expected occupancy note, got %q", f.complaints.lastNote)
	}
	if len(f.sync.transitions) != 1 || f.sync.transitions[0] != "Pending->Assigned" {
		t.Errorf("Expected counter transition Pending->Assigned, got %v", f.sync.transitions)
	}
}

func TestAssignPreconditions(t *testing.T) {
	t.Run("complaint not found", func(t *testing.T) {
		f := newFixture()
		workerID := f.addWorker(t, mumbai(), true)

		_, _, err := f.engine.Assign(context.Background(), types.NewID(), workerID, types.NewID())
		if !errors.Is(err, errors.ErrNotFound) {
			t.Errorf("Expected not found, got %v", err)
		}
	})

	t.Run("complaint not pending", func(t *testing.T) {
		f := newFixture()
		workerID := f.addWorker(t, mumbai(), true)
		c := f.addPendingComplaint(t, mumbai())
		f.complaints.mu.Lock()
		f.complaints.complaints[c.ID].Status = domain.StatusResolved
		f.complaints.mu.Unlock()

		_, _, err := f.engine.Assign(context.Background(), c.ID, workerID, types.NewID())
		if !errors.Is(err, errors.ErrInvalidState) {
			t.Errorf("Expected invalid state, got %v", err)
		}
	})

	t.Run("worker not found", func(t *testing.T) {
		f := newFixture()
		c := f.addPendingComplaint(t, mumbai())

		_, _, err := f.engine.Assign(context.Background(), c.ID, types.NewID(), types.NewID())
		if !errors.Is(err, errors.ErrNotFound) {
			t.Errorf("Expected not found, got %v", err)
		}
	})

	t.Run("worker inactive", func(t *testing.T) {
		f := newFixture()
		workerID := f.addWorker(t, mumbai(), true)
		f.workers.workers[workerID].Status = worker.StatusInactive
		c := f.addPendingComplaint(t, mumbai())

		_, _, err := f.engine.Assign(context.Background(), c.ID, workerID, types.NewID())
		if !errors.Is(err, errors.ErrInvalidState) {
			t.Errorf("Expected invalid state, got %v", err)
		}
	})

	t.Run("region mismatch", func(t *testing.T) {
		f := newFixture()
		pune := types.Region{City: "Pune", District: "Kothrud", Pincode: "411038"}
		workerID := f.addWorker(t, pune, true)
		c := f.addPendingComplaint(t, mumbai())

		_, _, err := f.engine.Assign(context.Background(), c.ID, workerID, types.NewID())
		if !errors.Is(err, errors.ErrRegionMismatch) {
			t.Errorf("Expected region mismatch, got %v", err)
		}
	})

	t.Run("worker not on duty", func(t *testing.T) {
		f := newFixture()
		workerID := f.addWorker(t, mumbai(), false)
		c := f.addPendingComplaint(t, mumbai())

		_, _, err := f.engine.Assign(context.Background(), c.ID, workerID, types.NewID())
		if !errors.Is(err, errors.ErrNotOnDuty) {
			t.Errorf("Expected not on duty, got %v", err)
		}
	})

	t.Run("worker on leave", func(t *testing.T) {
		f := newFixture()
		workerID := f.addWorker(t, mumbai(), false)
		f.attendance.verdicts[workerID] = errors.OnLeave(workerID.String())
		c := f.addPendingComplaint(t, mumbai())

		_, _, err := f.engine.Assign(context.Background(), c.ID, workerID, types.NewID())
		if !errors.Is(err, errors.ErrOnLeave) {
			t.Errorf("Expected on leave, got %v", err)
		}
	})

	t.Run("worker at capacity", func(t *testing.T) {
		f := newFixture()
		workerID := f.addWorker(t, mumbai(), true)
		for i := 0; i < 4; i++ {
			f.addActiveTask(t, workerID, mumbai())
		}
		c := f.addPendingComplaint(t, mumbai())

		_, _, err := f.engine.Assign(context.Background(), c.ID, workerID, types.NewID())
		if !errors.Is(err, errors.ErrAtCapacity) {
			t.Fatalf("Expected at capacity, got %v", err)
		}

		appErr := err.(*errors.AppError)
		if appErr.Details["current_tasks"] != "4" || appErr.Details["max_tasks"] != "4" {
			t.Errorf("Expected task counts in details, got %v", appErr.Details)
		}
	})
}

func TestConcurrentAssignsRespectCapacity(t *testing.T) {
	f := newFixture()
	workerID := f.addWorker(t, mumbai(), true)

	// Two slots already taken, so exactly two of the racing assigns may
	// win.
	f.addActiveTask(t, workerID, mumbai())
	f.addActiveTask(t, workerID, mumbai())

	const attempts = 10
	var ids []types.ID
	for i := 0; i < attempts; i++ {
		ids = append(ids, f.addPendingComplaint(t, mumbai()).ID)
	}

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = f.engine.Assign(context.Background(), ids[i], workerID, types.NewID())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, errors.ErrAtCapacity) {
			t.Errorf("Expected at capacity for losers, got %v", err)
		}
	}

	if succeeded != 2 {
		t.Errorf("Expected exactly 2 successful assigns, got %d", succeeded)
	}

	count, _ := f.complaints.ActiveTaskCount(context.Background(), workerID)
	if count != 4 {
		t.Errorf("Expected 4 active tasks, got %d", count)
	}
}

func TestConcurrentAssignsSameComplaint(t *testing.T) {
	f := newFixture()
	c := f.addPendingComplaint(t, mumbai())

	const attempts = 8
	var workerIDs []types.ID
	for i := 0; i < attempts; i++ {
		workerIDs = append(workerIDs, f.addWorker(t, mumbai(), true))
	}

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = f.engine.Assign(context.Background(), c.ID, workerIDs[i], types.NewID())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, errors.ErrInvalidState) {
			t.Errorf("Expected invalid state for losers, got %v", err)
		}
	}

	if succeeded != 1 {
		t.Errorf("Expected exactly 1 successful assign, got %d", succeeded)
	}
}

func TestCanAssign(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		f := newFixture()
		workerID := f.addWorker(t, mumbai(), true)

		result, err := f.engine.CanAssign(context.Background(), workerID)
		if err != nil {
			t.Fatalf("Failed: %v", err)
		}
		if !result.OK || result.CurrentTasks != 0 || result.MaxTasks != 4 {
			t.Errorf("Expected ok with 0/4 tasks, got %+v", result)
		}
	})

	t.Run("on leave regardless of task count", func(t *testing.T) {
		f := newFixture()
		workerID := f.addWorker(t, mumbai(), false)
		f.attendance.verdicts[workerID] = errors.OnLeave(workerID.String())

		result, err := f.engine.CanAssign(context.Background(), workerID)
		if err != nil {
			t.Fatalf("Failed: %v", err)
		}
		if result.OK || result.Reason != "on leave" {
			t.Errorf("Expected on leave, got %+v", result)
		}
	})

	t.Run("at capacity", func(t *testing.T) {
		f := newFixture()
		workerID := f.addWorker(t, mumbai(), true)
		for i := 0; i < 4; i++ {
			f.addActiveTask(t, workerID, mumbai())
		}

		result, err := f.engine.CanAssign(context.Background(), workerID)
		if err != nil {
			t.Fatalf("Failed: %v", err)
		}
		if result.OK || result.Reason != "at capacity" || result.CurrentTasks != 4 {
			t.Errorf("Expected at capacity with 4 tasks, got %+v", result)
		}
	})
}

func TestAvailableWorkers(t *testing.T) {
	f := newFixture()

	onDuty := f.addWorker(t, mumbai(), true)
	f.addWorker(t, mumbai(), false) // never checked in

	onLeave := f.addWorker(t, mumbai(), false)
	f.attendance.verdicts[onLeave] = errors.OnLeave(onLeave.String())

	atCapacity := f.addWorker(t, mumbai(), true)
	for i := 0; i < 4; i++ {
		f.addActiveTask(t, atCapacity, mumbai())
	}

	busy := f.addWorker(t, mumbai(), true)
	f.addActiveTask(t, busy, mumbai())

	available, err := f.engine.AvailableWorkers(context.Background(), mumbai())
	if err != nil {
		t.Fatalf("Failed: %v", err)
	}

	if len(available) != 2 {
		t.Fatalf("Expected 2 available workers, got %d", len(available))
	}

	slots := make(map[types.ID]int)
	for _, aw := range available {
		slots[aw.Worker.ID] = aw.AvailableSlots
	}
	if slots[onDuty] != 4 {
		t.Errorf("Expected 4 slots for idle worker, got %d", slots[onDuty])
	}
	if slots[busy] != 3 {
		t.Errorf("Expected 3 slots for busy worker, got %d", slots[busy])
	}
}
