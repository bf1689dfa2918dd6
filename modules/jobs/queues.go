package jobs

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
)

type rateLimitRequest struct {
	Limit  int      `json:"limit"`
	Period duration `json:"period"`
}

type backoffRequest struct {
	Base       duration `json:"base"`
	Multiplier float64  `json:"multiplier"`
	Max        duration `json:"max"`
}

type createQueueRequest struct {
	Type            jobqueue.QueueType `json:"type"`
	Concurrency     int                `json:"concurrency"`
	RateLimit       *rateLimitRequest  `json:"rate_limit"`
	DefaultPriority jobqueue.Priority  `json:"default_priority"`
	DefaultTimeout  duration           `json:"default_timeout"`
	MaxAttempts     int                `json:"max_attempts"`
	Backoff         *backoffRequest    `json:"backoff"`
	RetryOnFail     *bool              `json:"retry_on_fail"`
	DeadLetterQueue string             `json:"dead_letter_queue"`
	Paused          bool               `json:"paused"`
	Inactive        bool               `json:"inactive"`
}

func (req createQueueRequest) definition() jobqueue.QueueDefinition {
	def := jobqueue.QueueDefinition{
		Type:            req.Type,
		Concurrency:     req.Concurrency,
		DefaultPriority: req.DefaultPriority,
		DefaultTimeout:  time.Duration(req.DefaultTimeout),
		MaxAttempts:     req.MaxAttempts,
		RetryOnFail:     req.RetryOnFail,
		DeadLetterQueue: req.DeadLetterQueue,
		Paused:          req.Paused,
		Inactive:        req.Inactive,
	}
	if req.RateLimit != nil {
		def.RateLimit = &jobqueue.RateLimit{Limit: req.RateLimit.Limit, Period: time.Duration(req.RateLimit.Period)}
	}
	if req.Backoff != nil {
		def.Backoff = &jobqueue.Backoff{
			Base:       time.Duration(req.Backoff.Base),
			Multiplier: req.Backoff.Multiplier,
			Max:        time.Duration(req.Backoff.Max),
		}
	}
	return def
}

type removedResponse struct {
	Removed int `json:"removed"`
}

func (h *Handler) listQueues(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.GetAllQueues())
}

func (h *Handler) createQueue(w http.ResponseWriter, r *http.Request) {
	var req createQueueRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	def := req.definition()
	q, err := h.manager.CreateQueue(def.Type, def.Options()...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) getQueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q, err := h.manager.GetQueue(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) getQueueByType(w http.ResponseWriter, r *http.Request) {
	q, err := h.manager.GetQueueByType(jobqueue.QueueType(chi.URLParam(r, "type")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) pauseQueue(w http.ResponseWriter, r *http.Request) {
	h.queueAction(w, r, h.manager.PauseQueue)
}

func (h *Handler) resumeQueue(w http.ResponseWriter, r *http.Request) {
	h.queueAction(w, r, h.manager.ResumeQueue)
}

func (h *Handler) queueAction(w http.ResponseWriter, r *http.Request, fn func(uuid.UUID) (*jobqueue.Queue, error)) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q, err := fn(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) clearQueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.manager.ClearQueue(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, removedResponse{Removed: n})
}

func (h *Handler) deleteQueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.manager.DeleteQueue(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
