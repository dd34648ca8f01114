package worker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fixmycity/platform/internal/shared/auth"
	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/events"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the worker module
type Handler struct {
	repo *Repository
	bus  events.EventBus
}

// NewHandler creates a new worker handler
func NewHandler(repo *Repository, bus events.EventBus) *Handler {
	return &Handler{repo: repo, bus: bus}
}

// Routes registers the worker routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListWorkers)
	r.Post("/", h.CreateWorker)

	r.Route("/{workerID}", func(r chi.Router) {
		r.Get("/", h.GetWorker)
		r.Put("/", h.UpdateWorker)
		r.Post("/deactivate", h.DeactivateWorker)
	})

	return r
}

// ListWorkers lists workers, optionally filtered by status or region
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status := Status(s)
		filter.Status = &status
	}

	if city := r.URL.Query().Get("city"); city != "" {
		region := types.Region{
			City:     city,
			District: r.URL.Query().Get("district"),
			Pincode:  r.URL.Query().Get("pincode"),
		}
		filter.Region = &region
	}

	workers, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  workers,
		"total": total,
	})
}

// GetWorker gets a worker by ID
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "workerID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid worker ID"))
		return
	}

	worker, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, worker)
}

// CreateWorker registers a new worker
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" || req.Email == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name":  "name is required",
			"email": "email is required",
		}))
		return
	}

	region, err := types.NewRegion(req.City, req.District, req.Pincode)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	now := time.Now()
	worker := &Worker{
		ID:        types.NewID(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Region:    region,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.Create(r.Context(), worker); err != nil {
		writeError(w, err)
		return
	}

	if h.bus != nil {
		actor := auth.GetActor(r.Context())
		actorID := types.ID("")
		if actor != nil {
			actorID = actor.ID
		}

		event := events.NewEvent("worker.registered", "worker", map[string]any{
			"worker_id": worker.ID,
			"region":    worker.Region,
		}).WithActor(actorID, auth.ActorTypeAdmin)

		h.bus.Publish(r.Context(), event)
	}

	writeJSON(w, http.StatusCreated, worker)
}

// UpdateWorker updates a worker
func (h *Handler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "workerID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid worker ID"))
		return
	}

	worker, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name != nil {
		worker.Name = *req.Name
	}
	if req.Email != nil {
		worker.Email = *req.Email
	}
	if req.Phone != nil {
		worker.Phone = *req.Phone
	}
	if req.Status != nil {
		worker.Status = *req.Status
	}
	worker.UpdatedAt = time.Now()

	if err := h.repo.Update(r.Context(), worker); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, worker)
}

// DeactivateWorker marks a worker inactive; inactive workers are never
// assignable
func (h *Handler) DeactivateWorker(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "workerID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid worker ID"))
		return
	}

	worker, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	worker.Status = StatusInactive
	worker.UpdatedAt = time.Now()

	if err := h.repo.Update(r.Context(), worker); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, worker)
}

// --- Helpers ---

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
