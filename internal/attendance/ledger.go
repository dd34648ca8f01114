package attendance

import (
	"context"
	"time"

	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/metrics"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Ledger derives on-duty state from the append-only event log and applies
// the write-time attendance policy.
type Ledger struct {
	repo   Repository
	window Window
	now    func() time.Time
}

// NewLedger creates an attendance ledger service.
func NewLedger(repo Repository, window Window) *Ledger {
	return &Ledger{repo: repo, window: window, now: time.Now}
}

// RecordEvent validates and appends a new attendance event. The default
// timestamp is now. Without the admin override the event must fall inside
// the office-hours window, must not duplicate a same-day check-in, and is
// blocked for the rest of the day once leave is recorded.
func (l *Ledger) RecordEvent(ctx context.Context, req RecordEventRequest, recordedBy types.ID) (*Event, error) {
	if !req.Type.IsValid() {
		return nil, errors.BadRequest("unknown attendance event type")
	}

	ts := l.now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	// Fast-fail convenience check. The repository repeats this at the
	// persistence boundary, which is the single source of truth.
	if !req.AdminOverride && !l.window.Contains(ts) {
		metrics.RecordOfficeHoursRejection()
		return nil, errors.OfficeHoursViolation(ts, l.window.Start(), l.window.End())
	}

	if !req.AdminOverride {
		onLeave, err := l.repo.HasEventOnDay(ctx, req.WorkerID, EventLeave, ts)
		if err != nil {
			return nil, err
		}
		if onLeave {
			return nil, errors.OnLeave(req.WorkerID.String())
		}

		if req.Type == EventCheckIn {
			checkedIn, err := l.repo.HasEventOnDay(ctx, req.WorkerID, EventCheckIn, ts)
			if err != nil {
				return nil, err
			}
			if checkedIn {
				return nil, errors.Conflict("worker already checked in today")
			}
		}
	}

	event := &Event{
		ID:            types.NewID(),
		WorkerID:      req.WorkerID,
		Type:          req.Type,
		Timestamp:     ts,
		RecordedBy:    recordedBy,
		AdminOverride: req.AdminOverride,
		CreatedAt:     l.now(),
	}

	if err := l.repo.Append(ctx, event); err != nil {
		if errors.Is(err, errors.ErrOfficeHours) {
			metrics.RecordOfficeHoursRejection()
		}
		return nil, err
	}

	metrics.RecordAttendanceEvent(string(event.Type))
	return event, nil
}

// CurrentState returns the worker's derived on-duty state, or nil if the
// worker has never logged an event.
func (l *Ledger) CurrentState(ctx context.Context, workerID types.ID) (*CurrentState, error) {
	latest, err := l.repo.Latest(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	return &CurrentState{Type: latest.Type, Timestamp: latest.Timestamp}, nil
}

// OnLeaveToday reports whether the worker has recorded leave today.
func (l *Ledger) OnLeaveToday(ctx context.Context, workerID types.ID) (bool, error) {
	return l.repo.HasEventOnDay(ctx, workerID, EventLeave, l.now())
}

// IsAssignable reports whether the worker may receive a new task: the
// latest event must be a check-in and the worker must not be on leave
// today.
func (l *Ledger) IsAssignable(ctx context.Context, workerID types.ID) (bool, error) {
	err := l.CheckAssignable(ctx, workerID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errors.ErrOnLeave) || errors.Is(err, errors.ErrNotOnDuty) {
		return false, nil
	}
	return false, err
}

// CheckAssignable returns nil if the worker may receive a new task, or the
// specific rejection otherwise.
func (l *Ledger) CheckAssignable(ctx context.Context, workerID types.ID) error {
	onLeave, err := l.OnLeaveToday(ctx, workerID)
	if err != nil {
		return err
	}
	if onLeave {
		return errors.OnLeave(workerID.String())
	}

	state, err := l.CurrentState(ctx, workerID)
	if err != nil {
		return err
	}
	if state == nil {
		return errors.NotOnDuty(workerID.String(), "never checked in")
	}
	if state.Type != EventCheckIn {
		return errors.NotOnDuty(workerID.String(), string(state.Type))
	}

	return nil
}

// History returns the worker's attendance events, newest first.
func (l *Ledger) History(ctx context.Context, workerID types.ID, limit int) ([]Event, error) {
	return l.repo.History(ctx, workerID, limit)
}

// Today returns all attendance events recorded today across workers.
func (l *Ledger) Today(ctx context.Context) ([]Event, error) {
	return l.repo.ListOnDay(ctx, l.now())
}
