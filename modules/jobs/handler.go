package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/jobengine/pkg/httpserver"
	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
	"github.com/dmitrymomot/jobengine/pkg/logger"
)

// Handler serves the job engine API.
type Handler struct {
	manager *jobqueue.Manager
	logger  *slog.Logger
	checks  []httpserver.NamedCheck
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithReadinessChecks adds dependency probes to GET /health/ready. The
// engine itself is always probed.
func WithReadinessChecks(checks ...httpserver.NamedCheck) Option {
	return func(h *Handler) {
		h.checks = append(h.checks, checks...)
	}
}

// New creates the API handler for m.
func New(m *jobqueue.Manager, opts ...Option) *Handler {
	h := &Handler{
		manager: m,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("jobs_api"))
	return h
}

// Handle returns the API router.
func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/queues", func(r chi.Router) {
		r.Get("/", h.listQueues)
		r.Post("/", h.createQueue)
		r.Get("/by-type/{type}", h.getQueueByType)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getQueue)
			r.Delete("/", h.deleteQueue)
			r.Post("/pause", h.pauseQueue)
			r.Post("/resume", h.resumeQueue)
			r.Post("/clear", h.clearQueue)
		})
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.listJobs)
		r.Post("/", h.addJob)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getJob)
			r.Put("/progress", h.updateProgress)
			r.Post("/cancel", h.cancelJob)
			r.Post("/retry", h.retryJob)
		})
	})

	r.Route("/dead-letter", func(r chi.Router) {
		r.Get("/", h.listDeadLetters)
		r.Delete("/", h.clearDeadLetters)
		r.Post("/{id}/reprocess", h.reprocessDeadLetter)
	})

	r.Route("/workers", func(r chi.Router) {
		r.Get("/", h.listWorkers)
		r.Post("/", h.registerWorker)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getWorker)
			r.Delete("/", h.removeWorker)
			r.Post("/heartbeat", h.heartbeat)
			r.Post("/stop", h.stopWorker)
		})
	})

	r.Get("/stats", h.stats)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(h.logger,
		append([]httpserver.NamedCheck{httpserver.Check("jobqueue", h.engineRunning)}, h.checks...)...))

	return r
}

func (h *Handler) engineRunning(context.Context) error {
	if !h.manager.Running() {
		return fmt.Errorf("engine is not running")
	}
	return nil
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.GetStats())
}
