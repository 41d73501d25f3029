package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maltedev/retail-price-sweeper/internal/aggregate"
	"github.com/maltedev/retail-price-sweeper/internal/database"
	"github.com/maltedev/retail-price-sweeper/internal/jobs"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/retailers"
)

// RunManager is the part of jobs.Manager the handlers need.
type RunManager interface {
	Submit(ctx context.Context, req jobs.Request) (*jobs.Run, error)
	Get(id uuid.UUID) (*jobs.Run, error)
	List() []jobs.Run
	Cancel(ctx context.Context, id uuid.UUID) (*jobs.Run, error)
	Results(id uuid.UUID) (map[string]*aggregate.ReducedMap, error)
}

// OutboxCounter reports the outbox backlog. It is nil when persistence is off.
type OutboxCounter interface {
	Counts(ctx context.Context) (database.OutboxCounts, error)
}

type Handlers struct {
	runs      RunManager
	catalog   []models.CatalogEntry
	retailers *retailers.Registry
	outbox    OutboxCounter
	logger    *slog.Logger
}

func NewHandlers(runs RunManager, catalog []models.CatalogEntry, registry *retailers.Registry, outbox OutboxCounter, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		runs:      runs,
		catalog:   catalog,
		retailers: registry,
		outbox:    outbox,
		logger:    logger.With("component", "api"),
	}
}

type CreateRunResponse struct {
	RunID   string      `json:"run_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	run, err := h.runs.Submit(r.Context(), req)
	switch {
	case errors.Is(err, retailers.ErrUnknownRetailer), errors.Is(err, jobs.ErrNoProducts):
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to create run", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "failed to create run")
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateRunResponse{
		RunID:   run.ID.String(),
		Status:  run.Status,
		Message: "Run queued",
	})
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.Get(id)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runs.List())
}

func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.Cancel(r.Context(), id)
	switch {
	case errors.Is(err, jobs.ErrRunNotFound):
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	case errors.Is(err, jobs.ErrRunFinished):
		h.respondError(w, http.StatusConflict, "run already finished")
		return
	case err != nil:
		h.logger.Error("failed to cancel run", "id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to cancel run")
		return
	}
	h.respondJSON(w, http.StatusAccepted, run)
}

func (h *Handlers) GetRunResults(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	results, err := h.runs.Results(id)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	h.respondJSON(w, http.StatusOK, results)
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.catalog)
}

type RetailerInfo struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Column string `json:"column"`
	Mode   string `json:"mode"`
}

func (h *Handlers) ListRetailers(w http.ResponseWriter, r *http.Request) {
	all := h.retailers.All()
	out := make([]RetailerInfo, len(all))
	for i, ret := range all {
		out[i] = RetailerInfo{Key: ret.Key, Name: ret.Name, Column: ret.Column, Mode: string(ret.Mode)}
	}
	h.respondJSON(w, http.StatusOK, out)
}

// Health reports ok, or degrades on a large outbox backlog.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if h.outbox != nil {
		counts, err := h.outbox.Counts(r.Context())
		if err != nil {
			h.logger.Error("failed to count outbox events", "error", err)
			health["status"] = "error"
			health["message"] = "outbox unavailable"
			h.respondJSON(w, http.StatusServiceUnavailable, health)
			return
		}

		health["outbox"] = counts
		if counts.Pending > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if counts.DeadLetter > 100 {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid run ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
