package jobs

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
	"github.com/dmitrymomot/jobengine/pkg/logger"
)

// Error codes returned in the error envelope.
const (
	CodeNotFound      = "not_found"
	CodeInvalidState  = "invalid_state"
	CodeQueueInactive = "queue_inactive"
	CodeRateLimited   = "rate_limited"
	CodeBadRequest    = "bad_request"
	CodeInternal      = "internal_error"
)

type envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail is the body of a failed response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

// classify maps an error to its HTTP status and envelope code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, jobqueue.ErrInvalidConfig):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, jobqueue.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, jobqueue.ErrQueueInactive):
		return http.StatusConflict, CodeQueueInactive
	case errors.Is(err, jobqueue.ErrInvalidState):
		return http.StatusConflict, CodeInvalidState
	case errors.Is(err, jobqueue.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, CodeRateLimited
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	msg := err.Error()
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
		msg = http.StatusText(status)
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		logger.Error(err))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &ErrorDetail{Code: code, Message: msg}})
}
