package attendance

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fixmycity/platform/internal/shared/auth"
	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/events"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the attendance ledger
type Handler struct {
	ledger *Ledger
	bus    events.EventBus
}

// NewHandler creates a new attendance handler. The bus may be nil.
func NewHandler(ledger *Ledger, bus events.EventBus) *Handler {
	return &Handler{ledger: ledger, bus: bus}
}

// Routes registers the attendance routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.RecordEvent)
	r.Get("/today", h.Today)

	r.Route("/{workerID}", func(r chi.Router) {
		r.Get("/current", h.CurrentState)
		r.Get("/history", h.History)
	})

	return r
}

// RecordEvent appends a new attendance event. Workers may only record
// their own events; the admin override is restricted to admins.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	actor := auth.GetActor(r.Context())
	recordedBy := types.ID("")
	if actor != nil {
		recordedBy = actor.ID

		if actor.IsWorker() && actor.ID != req.WorkerID {
			writeError(w, errors.Forbidden("workers may only record their own attendance"))
			return
		}
		if req.AdminOverride && !actor.IsAdmin() {
			writeError(w, errors.Forbidden("admin override requires an admin actor"))
			return
		}
	}

	if req.WorkerID.IsZero() {
		writeError(w, errors.BadRequest("worker_id is required"))
		return
	}

	event, err := h.ledger.RecordEvent(r.Context(), req, recordedBy)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.bus != nil {
		busEvent := events.NewEvent("attendance.recorded", "attendance", map[string]any{
			"worker_id":      event.WorkerID,
			"type":           event.Type,
			"ts":             event.Timestamp,
			"admin_override": event.AdminOverride,
		})
		if actor != nil {
			busEvent = busEvent.WithActor(actor.ID, actor.ActorType)
		}
		h.bus.Publish(r.Context(), busEvent)
	}

	writeJSON(w, http.StatusCreated, event)
}

// CurrentState returns the worker's derived on-duty state
func (h *Handler) CurrentState(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "workerID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid worker ID"))
		return
	}

	state, err := h.ledger.CurrentState(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if state == nil {
		writeJSON(w, http.StatusOK, map[string]any{"state": nil})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

// History returns the worker's attendance events, newest first
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "workerID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid worker ID"))
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}

	events, err := h.ledger.History(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": events})
}

// Today returns all attendance events recorded today
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	events, err := h.ledger.Today(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": events})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
