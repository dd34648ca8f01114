package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fixmycity/platform/internal/complaint/domain"
	"github.com/fixmycity/platform/internal/directory"
	"github.com/fixmycity/platform/internal/shared/auth"
	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/events"
	"github.com/fixmycity/platform/internal/shared/metrics"
	"github.com/fixmycity/platform/internal/shared/types"
)

// CounterSync receives complaint lifecycle changes for the reporter
// counters.
type CounterSync interface {
	OnCreate(ctx context.Context, reporterID types.ID, initialStatus domain.Status)
	OnTransition(ctx context.Context, reporterID types.ID, oldStatus, newStatus domain.Status)
	OnDelete(ctx context.Context, reporterID types.ID, status domain.Status)
}

// Handler provides HTTP handlers for the complaint module
type Handler struct {
	repo      domain.Repository
	counters  CounterSync
	directory directory.Service
	bus       events.EventBus
}

// NewHandler creates a new complaint handler. The directory and bus may
// be nil.
func NewHandler(repo domain.Repository, counters CounterSync, dir directory.Service, bus events.EventBus) *Handler {
	return &Handler{repo: repo, counters: counters, directory: dir, bus: bus}
}

// Routes registers the complaint routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListComplaints)
	r.Post("/", h.CreateComplaint)

	r.Route("/{complaintID}", func(r chi.Router) {
		r.Get("/", h.GetComplaint)
		r.Put("/", h.UpdateComplaint)
		r.Delete("/", h.DeleteComplaint)

		// Status workflow
		r.Post("/request-status", h.RequestStatusChange)
		r.Post("/review-status", h.ReviewStatusChange)
		r.Post("/status", h.SetStatus)

		r.Get("/history", h.GetHistory)
	})

	return r
}

// --- Request types ---

type CreateComplaintRequest struct {
	ReporterID  types.ID `json:"reporter_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	City        string   `json:"city"`
	District    string   `json:"district"`
	Pincode     string   `json:"pincode"`
}

type UpdateComplaintRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

type RequestStatusRequest struct {
	WorkerID  types.ID      `json:"worker_id"`
	NewStatus domain.Status `json:"new_status"`
	Remarks   string        `json:"remarks,omitempty"`
}

type ReviewStatusRequest struct {
	Approve   bool   `json:"approve"`
	AdminNote string `json:"admin_note,omitempty"`
}

type SetStatusRequest struct {
	Status domain.Status `json:"status"`
	Note   string        `json:"note,omitempty"`
}

// --- Handlers ---

// ListComplaints lists complaints with filters
func (h *Handler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.Status(s)
		filter.Status = &status
	}

	if rep := r.URL.Query().Get("reporter_id"); rep != "" {
		id, err := types.ParseID(rep)
		if err != nil {
			writeError(w, errors.BadRequest("invalid reporter ID"))
			return
		}
		filter.ReporterID = &id
	}

	if city := r.URL.Query().Get("city"); city != "" {
		region := types.Region{
			City:     city,
			District: r.URL.Query().Get("district"),
			Pincode:  r.URL.Query().Get("pincode"),
		}
		filter.Region = &region
	}

	complaints, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  complaints,
		"total": total,
	})
}

// GetComplaint gets a complaint by ID with its status history
func (h *Handler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "complaintID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid complaint ID"))
		return
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// CreateComplaint files a new complaint. The region is inherited from
// the reporter: from the citizen registry when available, otherwise
// from the request.
func (h *Handler) CreateComplaint(w http.ResponseWriter, r *http.Request) {
	var req CreateComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	actor := auth.GetActor(r.Context())
	reporterID := req.ReporterID
	if actor != nil && actor.ActorType == auth.ActorTypeReporter {
		reporterID = actor.ID
	}
	if reporterID.IsZero() {
		writeError(w, errors.BadRequest("reporter_id is required"))
		return
	}

	region := types.Region{City: req.City, District: req.District, Pincode: req.Pincode}
	if h.directory != nil {
		reporter, err := h.directory.GetReporter(r.Context(), reporterID)
		if err != nil {
			writeError(w, err)
			return
		}
		region = reporter.Region
	}

	c, err := domain.NewComplaint(reporterID, req.Title, req.Description, req.Category, region)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.Save(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}

	h.counters.OnCreate(r.Context(), c.ReporterID, c.Status)
	metrics.RecordComplaintCreated(c.Category, c.Region.City)
	h.publishEvents(r.Context(), c, actor)

	writeJSON(w, http.StatusCreated, c)
}

// UpdateComplaint edits a complaint's descriptive fields. Status and
// assignment are never touched here.
func (h *Handler) UpdateComplaint(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "complaintID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid complaint ID"))
		return
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Category != nil {
		c.Category = *req.Category
	}

	if err := h.repo.Update(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// DeleteComplaint removes a complaint and rolls its counters back
func (h *Handler) DeleteComplaint(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())
	if actor != nil && !actor.IsAdmin() {
		writeError(w, errors.Forbidden("only administrators may delete complaints"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "complaintID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid complaint ID"))
		return
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.counters.OnDelete(r.Context(), c.ReporterID, c.Status)

	if h.bus != nil {
		event := events.NewEvent("complaint.deleted", "complaint", map[string]any{
			"complaint_id": id,
			"status":       c.Status,
		})
		if actor != nil {
			event = event.WithActor(actor.ID, actor.ActorType)
		}
		h.bus.Publish(r.Context(), event)
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestStatusChange records the assigned worker's proposal to move the
// complaint to a new status, pending administrator review.
func (h *Handler) RequestStatusChange(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "complaintID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid complaint ID"))
		return
	}

	var req RequestStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	actor := auth.GetActor(r.Context())
	workerID := req.WorkerID
	if actor != nil && actor.IsWorker() {
		workerID = actor.ID
	}
	if workerID.IsZero() {
		writeError(w, errors.BadRequest("worker_id is required"))
		return
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if c.AssignedWorker == nil || *c.AssignedWorker != workerID {
		writeError(w, errors.Unauthorized("complaint is not assigned to this worker"))
		return
	}
	if c.PendingUpdate != nil {
		writeError(w, errors.DuplicateRequest(id.String()))
		return
	}

	if err := c.RequestStatusChange(workerID, req.NewStatus, req.Remarks); err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	// Conditioned on no unreviewed request, so a racing duplicate loses
	// here even though the read above saw none.
	if err := h.repo.SetPendingUpdate(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}

	h.publishEvents(r.Context(), c, actor)

	writeJSON(w, http.StatusOK, c)
}

// ReviewStatusChange ratifies or rejects the outstanding request
func (h *Handler) ReviewStatusChange(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())
	if actor != nil && !actor.IsAdmin() {
		writeError(w, errors.Forbidden("only administrators may review status changes"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "complaintID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid complaint ID"))
		return
	}

	var req ReviewStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	adminID := types.ID("")
	if actor != nil {
		adminID = actor.ID
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if c.PendingUpdate == nil {
		writeError(w, errors.InvalidState("no status change request is pending review", string(c.Status)))
		return
	}

	oldStatus, newStatus, err := c.ApplyReview(adminID, req.Approve, req.AdminNote)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.CompleteReview(r.Context(), c, c.LatestHistory()); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordStatusReview(req.Approve)
	if oldStatus != newStatus {
		metrics.RecordStatusTransition(string(oldStatus), string(newStatus))
		h.counters.OnTransition(r.Context(), c.ReporterID, oldStatus, newStatus)
	}

	h.publishEvents(r.Context(), c, actor)

	writeJSON(w, http.StatusOK, c)
}

// SetStatus is the administrative correction path. It bypasses the
// request and review protocol but maintains history and counters
// identically.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())
	if actor != nil && !actor.IsAdmin() {
		writeError(w, errors.Forbidden("only administrators may set status directly"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "complaintID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid complaint ID"))
		return
	}

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	adminID := types.ID("")
	if actor != nil {
		adminID = actor.ID
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	oldStatus, err := c.SetStatusDirect(adminID, req.Status, req.Note)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), c, c.LatestHistory()); err != nil {
		writeError(w, err)
		return
	}

	if oldStatus != c.Status {
		metrics.RecordStatusTransition(string(oldStatus), string(c.Status))
		h.counters.OnTransition(r.Context(), c.ReporterID, oldStatus, c.Status)
	}

	h.publishEvents(r.Context(), c, actor)

	writeJSON(w, http.StatusOK, c)
}

// GetHistory returns the complaint's append-only status trail
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "complaintID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid complaint ID"))
		return
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": c.History})
}

func (h *Handler) publishEvents(ctx context.Context, c *domain.Complaint, actor *auth.Actor) {
	if h.bus == nil {
		c.GetDomainEvents()
		return
	}

	for _, de := range c.GetDomainEvents() {
		data := de.Data
		if data == nil {
			data = map[string]any{}
		}
		data["complaint_id"] = de.ComplaintID
		data["reporter_id"] = c.ReporterID

		event := events.NewEvent(de.Type, "complaint", data)
		if actor != nil {
			event = event.WithActor(actor.ID, actor.ActorType)
		}
		h.bus.Publish(ctx, event)
	}
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
