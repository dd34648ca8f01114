package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fixmycity/platform/internal/shared/types"
)

// EventType classifies an attendance ledger entry.
type EventType string

const (
	EventCheckIn  EventType = "check_in"
	EventCheckOut EventType = "check_out"
	EventBreak    EventType = "break"
	EventOnDuty   EventType = "on_duty"
	EventOvertime EventType = "overtime"
	EventLeave    EventType = "leave"
)

// IsValid reports whether the event type is one of the known kinds.
func (t EventType) IsValid() bool {
	switch t {
	case EventCheckIn, EventCheckOut, EventBreak, EventOnDuty, EventOvertime, EventLeave:
		return true
	}
	return false
}

// Event is a single append-only attendance ledger entry. Events are never
// updated or deleted; a worker's current state is the type of their latest
// event by timestamp.
type Event struct {
	ID            types.ID  `json:"id"`
	WorkerID      types.ID  `json:"worker_id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	RecordedBy    types.ID  `json:"recorded_by"`
	AdminOverride bool      `json:"admin_override"`
	CreatedAt     time.Time `json:"created_at"`
}

// CurrentState is the derived on-duty state of a worker.
type CurrentState struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Window is the daily office-hours window, half-open: the start minute is
// included, the end minute is excluded.
type Window struct {
	startMin int
	endMin   int
	start    string
	end      string
}

// ParseWindow parses "HH:MM" bounds into a Window.
func ParseWindow(start, end string) (Window, error) {
	startMin, err := parseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window start %q: %w", start, err)
	}

	endMin, err := parseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window end %q: %w", end, err)
	}

	if endMin <= startMin {
		return Window{}, fmt.Errorf("window end %s must be after start %s", end, start)
	}

	return Window{startMin: startMin, endMin: endMin, start: start, end: end}, nil
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM")
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour")
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute")
	}

	return hour*60 + minute, nil
}

// Contains reports whether the timestamp falls inside the window. Only the
// clock time matters, minute precision.
func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= w.startMin && m < w.endMin
}

// Start returns the window start as HH:MM.
func (w Window) Start() string { return w.start }

// End returns the window end as HH:MM.
func (w Window) End() string { return w.end }

// RecordEventRequest is the request to record an attendance event.
type RecordEventRequest struct {
	WorkerID      types.ID   `json:"worker_id"`
	Type          EventType  `json:"type"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	AdminOverride bool       `json:"admin_override,omitempty"`
}
