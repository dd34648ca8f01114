package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fixmycity/platform/internal/shared/auth"
	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Handler provides HTTP handlers for reporter counters
type Handler struct {
	store      CounterStore
	reconciler *Reconciler
}

// NewHandler creates a new dashboard handler
func NewHandler(store CounterStore, reconciler *Reconciler) *Handler {
	return &Handler{store: store, reconciler: reconciler}
}

// Routes registers the dashboard routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/reporters/{reporterID}", h.GetCounters)
	r.Post("/reporters/{reporterID}/reconcile", h.ReconcileReporter)
	r.Post("/reconcile", h.ReconcileAll)

	return r
}

// GetCounters returns a reporter's counter aggregate
func (h *Handler) GetCounters(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "reporterID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid reporter ID"))
		return
	}

	counters, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, counters)
}

// ReconcileReporter recomputes a single reporter's counters
func (h *Handler) ReconcileReporter(w http.ResponseWriter, r *http.Request) {
	if actor := auth.GetActor(r.Context()); actor != nil && !actor.IsAdmin() {
		writeError(w, errors.Forbidden("only administrators may trigger reconciliation"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "reporterID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid reporter ID"))
		return
	}

	if err := h.store.Recompute(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	counters, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, counters)
}

// ReconcileAll runs a full reconciliation pass
func (h *Handler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	if actor := auth.GetActor(r.Context()); actor != nil && !actor.IsAdmin() {
		writeError(w, errors.Forbidden("only administrators may trigger reconciliation"))
		return
	}

	if err := h.reconciler.Run(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reconciled"})
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
