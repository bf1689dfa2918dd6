package jobs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
)

type addJobRequest struct {
	QueueType      jobqueue.QueueType `json:"queue_type"`
	Payload        json.RawMessage    `json:"payload"`
	Priority       jobqueue.Priority  `json:"priority"`
	Delay          duration           `json:"delay"`
	ScheduledAt    *time.Time         `json:"scheduled_at"`
	Timeout        *duration          `json:"timeout"`
	MaxAttempts    int                `json:"max_attempts"`
	OrganizationID string             `json:"organization_id"`
	Tags           []string           `json:"tags"`
	Metadata       map[string]string  `json:"metadata"`
}

func (req addJobRequest) options() []jobqueue.JobOption {
	var opts []jobqueue.JobOption
	if req.Priority != "" {
		opts = append(opts, jobqueue.WithPriority(req.Priority))
	}
	if req.Delay != 0 {
		opts = append(opts, jobqueue.WithDelay(time.Duration(req.Delay)))
	}
	if req.ScheduledAt != nil {
		opts = append(opts, jobqueue.WithScheduledAt(*req.ScheduledAt))
	}
	if req.Timeout != nil {
		opts = append(opts, jobqueue.WithTimeout(time.Duration(*req.Timeout)))
	}
	if req.MaxAttempts != 0 {
		opts = append(opts, jobqueue.WithMaxAttempts(req.MaxAttempts))
	}
	if req.OrganizationID != "" {
		opts = append(opts, jobqueue.WithOrganization(req.OrganizationID))
	}
	if len(req.Tags) > 0 {
		opts = append(opts, jobqueue.WithTags(req.Tags...))
	}
	for k, v := range req.Metadata {
		opts = append(opts, jobqueue.WithMetadata(k, v))
	}
	return opts
}

type progressRequest struct {
	Progress *int `json:"progress"`
}

func (h *Handler) addJob(w http.ResponseWriter, r *http.Request) {
	var req addJobRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.QueueType == "" {
		h.writeError(w, r, fmt.Errorf("%w: queue_type is required", errBadRequest))
		return
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	job, err := h.manager.AddJob(r.Context(), req.QueueType, payload, req.options()...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// listJobs returns jobs matching every given filter: queue, status and
// organization. Without filters it returns all jobs.
func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	queueType := jobqueue.QueueType(q.Get("queue"))
	status := jobqueue.JobStatus(q.Get("status"))
	org := q.Get("organization")

	if status != "" && !status.Valid() {
		h.writeError(w, r, fmt.Errorf("%w: unknown status %q", errBadRequest, status))
		return
	}

	var (
		jobs []*jobqueue.Job
		err  error
	)
	switch {
	case queueType != "":
		jobs, err = h.manager.GetJobsByQueue(queueType)
	case status != "":
		jobs = h.manager.GetJobsByStatus(status)
	case org != "":
		jobs = h.manager.GetJobsByOrganization(org)
	default:
		for _, s := range jobqueue.JobStatuses {
			jobs = append(jobs, h.manager.GetJobsByStatus(s)...)
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]*jobqueue.Job, 0, len(jobs))
	for _, j := range jobs {
		if status != "" && j.Status != status {
			continue
		}
		if org != "" && j.OrganizationID != org {
			continue
		}
		out = append(out, j)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, h.manager.GetJob)
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, h.manager.CancelJob)
}

func (h *Handler) retryJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, h.manager.RetryJob)
}

func (h *Handler) updateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Progress == nil {
		h.writeError(w, r, fmt.Errorf("%w: progress is required", errBadRequest))
		return
	}
	h.jobAction(w, r, func(id uuid.UUID) (*jobqueue.Job, error) {
		return h.manager.UpdateJobProgress(id, *req.Progress)
	})
}

func (h *Handler) jobAction(w http.ResponseWriter, r *http.Request, fn func(uuid.UUID) (*jobqueue.Job, error)) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	job, err := fn(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.GetDeadLetterJobs(jobqueue.QueueType(r.URL.Query().Get("queue"))))
}

func (h *Handler) clearDeadLetters(w http.ResponseWriter, r *http.Request) {
	n := h.manager.ClearDeadLetterQueue(jobqueue.QueueType(r.URL.Query().Get("queue")))
	writeJSON(w, http.StatusOK, removedResponse{Removed: n})
}

func (h *Handler) reprocessDeadLetter(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, h.manager.ReprocessDeadLetterJob)
}
