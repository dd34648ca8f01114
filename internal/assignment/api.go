package assignment

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fixmycity/platform/internal/shared/auth"
	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the assignment engine
type Handler struct {
	engine *Engine
}

// NewHandler creates a new assignment handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes registers the assignment routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Assign)
	r.Get("/available-workers", h.AvailableWorkers)
	r.Get("/workers/{workerID}/can-assign", h.CanAssign)

	return r
}

// AssignRequest is the request to assign a complaint to a worker
type AssignRequest struct {
	ComplaintID types.ID `json:"complaint_id"`
	WorkerID    types.ID `json:"worker_id"`
}

// Assign hands a pending complaint to a worker
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())
	if actor != nil && !actor.IsAdmin() {
		writeError(w, errors.Forbidden("only administrators may assign complaints"))
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.ComplaintID.IsZero() || req.WorkerID.IsZero() {
		writeError(w, errors.BadRequest("complaint_id and worker_id are required"))
		return
	}

	adminID := types.ID("")
	if actor != nil {
		adminID = actor.ID
	}

	complaint, occupancy, err := h.engine.Assign(r.Context(), req.ComplaintID, req.WorkerID, adminID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"complaint": complaint,
		"occupancy": occupancy,
	})
}

// CanAssign reports whether a worker can take a new task
func (h *Handler) CanAssign(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "workerID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid worker ID"))
		return
	}

	result, err := h.engine.CanAssign(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// AvailableWorkers lists assignable workers in a region
func (h *Handler) AvailableWorkers(w http.ResponseWriter, r *http.Request) {
	region, err := types.NewRegion(
		r.URL.Query().Get("city"),
		r.URL.Query().Get("district"),
		r.URL.Query().Get("pincode"),
	)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	workers, err := h.engine.AvailableWorkers(r.Context(), region)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": workers})
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
