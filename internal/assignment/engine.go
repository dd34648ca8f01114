package assignment

import (
	"context"
	"fmt"

	"github.com/fixmycity/platform/internal/complaint/domain"
	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/events"
	"github.com/fixmycity/platform/internal/shared/metrics"
	"github.com/fixmycity/platform/internal/shared/types"
	"github.com/fixmycity/platform/internal/worker"
)

// ComplaintStore is the slice of complaint persistence the engine needs.
type ComplaintStore interface {
	FindByID(ctx context.Context, id types.ID) (*domain.Complaint, error)
	ActiveTaskCount(ctx context.Context, workerID types.ID) (int, error)
	AssignIfPending(ctx context.Context, complaintID, workerID, adminID types.ID, maxTasks int, note string) (*domain.Complaint, int, error)
}

// WorkerStore resolves workers and regional candidates.
type WorkerStore interface {
	Get(ctx context.Context, id types.ID) (*worker.Worker, error)
	ListActiveInRegion(ctx context.Context, region types.Region) ([]worker.Worker, error)
}

// AttendanceChecker derives on-duty state from the attendance ledger.
type AttendanceChecker interface {
	CheckAssignable(ctx context.Context, workerID types.ID) error
	OnLeaveToday(ctx context.Context, workerID types.ID) (bool, error)
	IsAssignable(ctx context.Context, workerID types.ID) (bool, error)
}

// CounterSync receives status transitions for the reporter counters.
type CounterSync interface {
	OnTransition(ctx context.Context, reporterID types.ID, oldStatus, newStatus domain.Status)
}

// Occupancy describes a worker's task load after an assignment.
type Occupancy struct {
	Current   int `json:"current"`
	Max       int `json:"max"`
	Remaining int `json:"remaining"`
}

// CanAssignResult explains whether a worker can take a new task.
type CanAssignResult struct {
	OK           bool   `json:"ok"`
	Reason       string `json:"reason,omitempty"`
	CurrentTasks int    `json:"current_tasks"`
	MaxTasks     int    `json:"max_tasks"`
}

// AvailableWorker is one assignable candidate in a region.
type AvailableWorker struct {
	Worker         worker.Worker `json:"worker"`
	CurrentTasks   int           `json:"current_tasks"`
	AvailableSlots int           `json:"available_slots"`
}

// Engine validates and performs complaint assignments. The precondition
// checks here are fast-fail conveniences; the final write is a single
// conditional update so concurrent attempts cannot double-assign a
// complaint or overrun a worker's capacity.
type Engine struct {
	complaints ComplaintStore
	workers    WorkerStore
	attendance AttendanceChecker
	counters   CounterSync
	bus        events.EventBus
	maxTasks   int
}

// NewEngine creates an assignment engine. The bus may be nil.
func NewEngine(complaints ComplaintStore, workers WorkerStore, attendance AttendanceChecker, counters CounterSync, bus events.EventBus, maxTasks int) *Engine {
	if maxTasks <= 0 {
		maxTasks = 4
	}
	return &Engine{
		complaints: complaints,
		workers:    workers,
		attendance: attendance,
		counters:   counters,
		bus:        bus,
		maxTasks:   maxTasks,
	}
}

// Assign hands a pending complaint to a worker. Preconditions are
// checked in order, first failure wins: complaint pending, worker
// active, region match, on duty, under capacity.
func (e *Engine) Assign(ctx context.Context, complaintID, workerID, adminID types.ID) (*domain.Complaint, Occupancy, error) {
	c, err := e.complaints.FindByID(ctx, complaintID)
	if err != nil {
		return nil, Occupancy{}, e.fail(err)
	}
	if c.Status != domain.StatusPending {
		return nil, Occupancy{}, e.fail(errors.InvalidState("complaint is not pending assignment", string(c.Status)))
	}

	w, err := e.workers.Get(ctx, workerID)
	if err != nil {
		return nil, Occupancy{}, e.fail(err)
	}
	if !w.IsActive() {
		return nil, Occupancy{}, e.fail(errors.InvalidState("worker is not active", string(w.Status)))
	}

	if !c.Region.Equals(w.Region) {
		return nil, Occupancy{}, e.fail(errors.RegionMismatch(c.Region.String(), w.Region.String()))
	}

	if err := e.attendance.CheckAssignable(ctx, workerID); err != nil {
		return nil, Occupancy{}, e.fail(err)
	}

	count, err := e.complaints.ActiveTaskCount(ctx, workerID)
	if err != nil {
		return nil, Occupancy{}, e.fail(err)
	}
	if count >= e.maxTasks {
		return nil, Occupancy{}, e.fail(errors.AtCapacity(workerID.String(), count, e.maxTasks))
	}

	note := fmt.Sprintf("Assigned to %s (%d/%d tasks)", w.Name, count+1, e.maxTasks)
	updated, current, err := e.complaints.AssignIfPending(ctx, complaintID, workerID, adminID, e.maxTasks, note)
	if err != nil {
		return nil, Occupancy{}, e.fail(err)
	}

	metrics.RecordAssignmentAttempt("success")
	metrics.RecordStatusTransition(string(domain.StatusPending), string(domain.StatusAssigned))

	e.counters.OnTransition(ctx, updated.ReporterID, domain.StatusPending, domain.StatusAssigned)

	if e.bus != nil {
		event := events.NewEvent("complaint.assigned", "assignment", map[string]any{
			"complaint_id": complaintID,
			"worker_id":    workerID,
			"occupancy":    current,
		}).WithActor(adminID, "admin")
		e.bus.Publish(ctx, event)
	}

	return updated, Occupancy{
		Current:   current,
		Max:       e.maxTasks,
		Remaining: e.maxTasks - current,
	}, nil
}

func (e *Engine) fail(err error) error {
	metrics.RecordAssignmentAttempt(outcomeFor(err))
	return err
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, errors.ErrRegionMismatch):
		return "region_mismatch"
	case errors.Is(err, errors.ErrNotOnDuty):
		return "not_on_duty"
	case errors.Is(err, errors.ErrOnLeave):
		return "on_leave"
	case errors.Is(err, errors.ErrAtCapacity):
		return "at_capacity"
	}
	return "error"
}

// CanAssign reports whether a worker can take a new task, with the
// counts the caller needs to explain a rejection. A worker on leave is
// reported unavailable regardless of task count.
func (e *Engine) CanAssign(ctx context.Context, workerID types.ID) (*CanAssignResult, error) {
	count, err := e.complaints.ActiveTaskCount(ctx, workerID)
	if err != nil {
		return nil, err
	}

	result := &CanAssignResult{CurrentTasks: count, MaxTasks: e.maxTasks}

	if err := e.attendance.CheckAssignable(ctx, workerID); err != nil {
		switch {
		case errors.Is(err, errors.ErrOnLeave):
			result.Reason = "on leave"
		case errors.Is(err, errors.ErrNotOnDuty):
			result.Reason = "not on duty"
		default:
			return nil, err
		}
		return result, nil
	}

	if count >= e.maxTasks {
		result.Reason = "at capacity"
		return result, nil
	}

	result.OK = true
	return result, nil
}

// AvailableWorkers lists the region's workers that could take a new
// task right now: active, on duty, not on leave, under capacity.
func (e *Engine) AvailableWorkers(ctx context.Context, region types.Region) ([]AvailableWorker, error) {
	candidates, err := e.workers.ListActiveInRegion(ctx, region)
	if err != nil {
		return nil, err
	}

	available := []AvailableWorker{}
	for _, w := range candidates {
		assignable, err := e.attendance.IsAssignable(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		if !assignable {
			continue
		}

		count, err := e.complaints.ActiveTaskCount(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		if count >= e.maxTasks {
			continue
		}

		available = append(available, AvailableWorker{
			Worker:         w,
			CurrentTasks:   count,
			AvailableSlots: e.maxTasks - count,
		})
	}

	return available, nil
}
