package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Common error types
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
	ErrValidation      = errors.New("validation error")
	ErrInvalidState    = errors.New("invalid state")
	ErrRegionMismatch  = errors.New("region mismatch")
	ErrNotOnDuty       = errors.New("not on duty")
	ErrAtCapacity      = errors.New("at capacity")
	ErrOnLeave         = errors.New("on leave")
	ErrDuplicateReq    = errors.New("duplicate request")
	ErrOfficeHours     = errors.New("office hours violation")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether the error wraps the given sentinel.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// NotFound creates a not found error
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a forbidden error
func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		Code:       "BAD_REQUEST",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Validation creates a validation error with field details
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    message,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusConflict,
	}
}

// InvalidState signals that an operation found its target in a status it
// cannot act on, such as assigning a complaint that is no longer pending.
func InvalidState(message string, current string) *AppError {
	return &AppError{
		Err:        ErrInvalidState,
		Message:    message,
		Code:       "INVALID_STATE",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]string{"current_status": current},
	}
}

// RegionMismatch signals a cross-region assignment attempt.
func RegionMismatch(complaintRegion, workerRegion string) *AppError {
	return &AppError{
		Err:        ErrRegionMismatch,
		Message:    "worker region does not match complaint region",
		Code:       "REGION_MISMATCH",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]string{
			"complaint_region": complaintRegion,
			"worker_region":    workerRegion,
		},
	}
}

// NotOnDuty signals that a worker is not currently checked in.
func NotOnDuty(workerID, currentState string) *AppError {
	return &AppError{
		Err:        ErrNotOnDuty,
		Message:    "worker is not on duty",
		Code:       "NOT_ON_DUTY",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]string{
			"worker_id":     workerID,
			"current_state": currentState,
		},
	}
}

// AtCapacity signals that a worker already carries the maximum number of
// active tasks. The counts are included so the caller can explain the
// rejection.
func AtCapacity(workerID string, currentTasks, maxTasks int) *AppError {
	return &AppError{
		Err:        ErrAtCapacity,
		Message:    "worker is at maximum task capacity",
		Code:       "AT_CAPACITY",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]string{
			"worker_id":     workerID,
			"current_tasks": strconv.Itoa(currentTasks),
			"max_tasks":     strconv.Itoa(maxTasks),
		},
	}
}

// OnLeave signals that a worker is on leave for the current day.
func OnLeave(workerID string) *AppError {
	return &AppError{
		Err:        ErrOnLeave,
		Message:    "worker is on leave today",
		Code:       "ON_LEAVE",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]string{"worker_id": workerID},
	}
}

// DuplicateRequest signals that an unreviewed status-change request
// already exists for the complaint.
func DuplicateRequest(complaintID string) *AppError {
	return &AppError{
		Err:        ErrDuplicateReq,
		Message:    "a status change request is already pending review",
		Code:       "DUPLICATE_REQUEST",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]string{"complaint_id": complaintID},
	}
}

// OfficeHoursViolation signals an attendance write outside the configured
// window. The attempted timestamp and the window are carried for
// diagnostics.
func OfficeHoursViolation(attempted time.Time, windowStart, windowEnd string) *AppError {
	return &AppError{
		Err:        ErrOfficeHours,
		Message:    "attendance events may only be recorded during office hours",
		Code:       "OFFICE_HOURS_VIOLATION",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]string{
			"attempted_at": attempted.Format(time.RFC3339),
			"window_start": windowStart,
			"window_end":   windowEnd,
		},
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	if appErr, ok := err.(*AppError); ok {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}
