package jobs

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
)

type registerWorkerRequest struct {
	Name       string               `json:"name"`
	QueueTypes []jobqueue.QueueType `json:"queue_types"`
}

type heartbeatRequest struct {
	CurrentJobID *uuid.UUID `json:"current_job_id"`
}

func (h *Handler) listWorkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.GetAllWorkers())
}

func (h *Handler) registerWorker(w http.ResponseWriter, r *http.Request) {
	var req registerWorkerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	worker, err := h.manager.RegisterWorker(req.Name, req.QueueTypes...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, worker)
}

func (h *Handler) getWorker(w http.ResponseWriter, r *http.Request) {
	h.workerAction(w, r, h.manager.GetWorker)
}

func (h *Handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.workerAction(w, r, func(id uuid.UUID) (*jobqueue.Worker, error) {
		return h.manager.UpdateWorkerHeartbeat(id, req.CurrentJobID)
	})
}

func (h *Handler) stopWorker(w http.ResponseWriter, r *http.Request) {
	h.workerAction(w, r, func(id uuid.UUID) (*jobqueue.Worker, error) {
		return h.manager.StopWorker(r.Context(), id)
	})
}

func (h *Handler) removeWorker(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.manager.RemoveWorker(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) workerAction(w http.ResponseWriter, r *http.Request, fn func(uuid.UUID) (*jobqueue.Worker, error)) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	worker, err := fn(id)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("worker %s: %w", id, err))
		return
	}
	writeJSON(w, http.StatusOK, worker)
}
