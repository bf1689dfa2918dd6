package jobs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobengine/modules/jobs"
	"github.com/dmitrymomot/jobengine/pkg/httpserver"
	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
	"github.com/dmitrymomot/jobengine/pkg/logger"
)

type apiResponse[T any] struct {
	Data  T                  `json:"data"`
	Error *jobs.ErrorDetail `json:"error"`
}

type testAPI struct {
	t       *testing.T
	manager *jobqueue.Manager
	server  *httptest.Server
}

func newTestAPI(t *testing.T, opts ...jobs.Option) *testAPI {
	t.Helper()

	m := jobqueue.New(jobqueue.WithLogger(logger.Discard()))
	h := jobs.New(m, append([]jobs.Option{jobs.WithLogger(logger.Discard())}, opts...)...)
	srv := httptest.NewServer(h.Handle())
	t.Cleanup(srv.Close)

	return &testAPI{t: t, manager: m, server: srv}
}

func (a *testAPI) start() {
	a.t.Helper()
	require.NoError(a.t, a.manager.Start(context.Background()))
	a.t.Cleanup(func() { _ = a.manager.Stop(context.Background()) })
}

func (a *testAPI) do(method, path string, body any) *http.Response {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) apiResponse[T] {
	t.Helper()
	var out apiResponse[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestQueuesAPI(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	resp := api.do(http.MethodPost, "/queues", map[string]any{
		"type":        "EMAIL",
		"concurrency": 2,
		"rate_limit":  map[string]any{"limit": 10, "period": "1m"},
		"backoff":     map[string]any{"base": 500, "multiplier": 2, "max": "10s"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[jobqueue.Queue](t, resp).Data
	assert.Equal(t, jobqueue.QueueEmail, created.Type)
	assert.Equal(t, 2, created.Concurrency)
	require.NotNil(t, created.RateLimit)
	assert.Equal(t, time.Minute, created.RateLimit.Period)
	assert.Equal(t, 500*time.Millisecond, created.Backoff.Base)
	assert.Equal(t, 10*time.Second, created.Backoff.Max)

	resp = api.do(http.MethodPost, "/queues", map[string]any{"type": "EMAIL"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, jobs.CodeInvalidState, decode[any](t, resp).Error.Code)

	resp = api.do(http.MethodPost, "/queues", map[string]any{"type": "SMS", "concurrency": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(http.MethodPost, "/queues", map[string]any{"type": "SMS", "workers": 3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown fields are rejected")

	resp = api.do(http.MethodGet, "/queues", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]jobqueue.Queue](t, resp).Data, 1)

	resp = api.do(http.MethodGet, "/queues/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[jobqueue.Queue](t, resp).Data.ID)

	resp = api.do(http.MethodGet, "/queues/by-type/EMAIL", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[jobqueue.Queue](t, resp).Data.ID)

	resp = api.do(http.MethodGet, "/queues/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, jobs.CodeNotFound, decode[any](t, resp).Error.Code)

	resp = api.do(http.MethodGet, "/queues/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(http.MethodPost, "/queues/"+created.ID.String()+"/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[jobqueue.Queue](t, resp).Data.Paused)

	resp = api.do(http.MethodPost, "/queues/"+created.ID.String()+"/resume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[jobqueue.Queue](t, resp).Data.Paused)

	_, err := api.manager.AddJob(context.Background(), jobqueue.QueueEmail, nil)
	require.NoError(t, err)

	resp = api.do(http.MethodDelete, "/queues/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.do(http.MethodPost, "/queues/"+created.ID.String()+"/clear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[map[string]int](t, resp).Data["removed"])

	resp = api.do(http.MethodDelete, "/queues/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestJobsAPI(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	_, err := api.manager.CreateQueue(jobqueue.QueueEmail)
	require.NoError(t, err)
	_, err = api.manager.CreateQueue(jobqueue.QueueSMS, jobqueue.WithInactive())
	require.NoError(t, err)
	_, err = api.manager.CreateQueue(jobqueue.QueueWebhook, jobqueue.WithRateLimit(1, time.Hour))
	require.NoError(t, err)

	resp := api.do(http.MethodPost, "/jobs", map[string]any{
		"queue_type":      "EMAIL",
		"payload":         map[string]string{"to": "ops@example.com"},
		"priority":        "HIGH",
		"organization_id": "org-1",
		"tags":            []string{"welcome"},
		"metadata":        map[string]string{"source": "signup"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	job := decode[jobqueue.Job](t, resp).Data
	assert.Equal(t, jobqueue.JobPending, job.Status)
	assert.Equal(t, jobqueue.PriorityHigh, job.Priority)
	assert.Equal(t, "org-1", job.OrganizationID)
	assert.JSONEq(t, `{"to":"ops@example.com"}`, string(job.Payload))
	assert.Equal(t, "signup", job.Metadata["source"])

	resp = api.do(http.MethodPost, "/jobs", map[string]any{"queue_type": "EMAIL", "delay": "1h"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	delayed := decode[jobqueue.Job](t, resp).Data
	assert.Equal(t, jobqueue.JobQueued, delayed.Status)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"missing queue type", map[string]any{}, http.StatusBadRequest, jobs.CodeBadRequest},
		{"unknown queue", map[string]any{"queue_type": "FAX"}, http.StatusNotFound, jobs.CodeNotFound},
		{"inactive queue", map[string]any{"queue_type": "SMS"}, http.StatusConflict, jobs.CodeQueueInactive},
		{"bad priority", map[string]any{"queue_type": "EMAIL", "priority": "URGENT"}, http.StatusBadRequest, jobs.CodeBadRequest},
	}
	for _, tt := range tests {
		resp := api.do(http.MethodPost, "/jobs", tt.body)
		assert.Equal(t, tt.status, resp.StatusCode, tt.name)
		assert.Equal(t, tt.code, decode[any](t, resp).Error.Code, tt.name)
	}

	resp = api.do(http.MethodPost, "/jobs", map[string]any{"queue_type": "WEBHOOK"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = api.do(http.MethodPost, "/jobs", map[string]any{"queue_type": "WEBHOOK"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, jobs.CodeRateLimited, decode[any](t, resp).Error.Code)

	resp = api.do(http.MethodGet, "/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, job.ID, decode[jobqueue.Job](t, resp).Data.ID)

	resp = api.do(http.MethodGet, "/jobs?queue=EMAIL", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]jobqueue.Job](t, resp).Data, 2)

	resp = api.do(http.MethodGet, "/jobs?queue=EMAIL&status=QUEUED", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decode[[]jobqueue.Job](t, resp).Data
	require.Len(t, listed, 1)
	assert.Equal(t, delayed.ID, listed[0].ID)

	resp = api.do(http.MethodGet, "/jobs?organization=org-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]jobqueue.Job](t, resp).Data, 1)

	resp = api.do(http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]jobqueue.Job](t, resp).Data, 3)

	resp = api.do(http.MethodGet, "/jobs?status=SLEEPING", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(http.MethodPut, "/jobs/"+job.ID.String()+"/progress", map[string]int{"progress": 50})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "only processing jobs report progress")

	resp = api.do(http.MethodPost, "/jobs/"+delayed.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, jobqueue.JobCancelled, decode[jobqueue.Job](t, resp).Data.Status)

	resp = api.do(http.MethodPost, "/jobs/"+delayed.ID.String()+"/retry", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.do(http.MethodGet, "/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobsAPI_Progress(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	started := make(chan uuid.UUID, 1)
	release := make(chan struct{})

	_, err := api.manager.CreateQueue(jobqueue.QueueReportGeneration)
	require.NoError(t, err)
	require.NoError(t, api.manager.RegisterProcessorFunc(jobqueue.QueueReportGeneration,
		func(ctx context.Context, job *jobqueue.Job) (any, error) {
			started <- job.ID
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, nil
		}))
	api.start()
	t.Cleanup(func() { close(release) })

	job, err := api.manager.AddJob(context.Background(), jobqueue.QueueReportGeneration, nil)
	require.NoError(t, err)
	<-started

	resp := api.do(http.MethodPut, "/jobs/"+job.ID.String()+"/progress", map[string]int{"progress": 40})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 40, decode[jobqueue.Job](t, resp).Data.Progress)

	resp = api.do(http.MethodPut, "/jobs/"+job.ID.String()+"/progress", map[string]int{"progress": 140})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(http.MethodPut, "/jobs/"+job.ID.String()+"/progress", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(http.MethodPost, "/jobs/"+job.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeadLetterAPI(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	q, err := api.manager.CreateQueue(jobqueue.QueueTaxSubmission,
		jobqueue.WithDefaultMaxAttempts(1), jobqueue.WithDeadLetter("tax-dlq"))
	require.NoError(t, err)
	require.NoError(t, api.manager.RegisterProcessorFunc(jobqueue.QueueTaxSubmission,
		func(context.Context, *jobqueue.Job) (any, error) { return nil, errors.New("gateway down") }))
	api.start()

	var ids []uuid.UUID
	for range 2 {
		job, err := api.manager.AddJob(context.Background(), jobqueue.QueueTaxSubmission, nil)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	require.Eventually(t, func() bool {
		return len(api.manager.GetDeadLetterJobs(jobqueue.QueueTaxSubmission)) == 2
	}, 3*time.Second, 5*time.Millisecond)

	resp := api.do(http.MethodGet, "/dead-letter?queue=TAX_SUBMISSION", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]jobqueue.Job](t, resp).Data, 2)

	_, err = api.manager.PauseQueue(q.ID)
	require.NoError(t, err)

	resp = api.do(http.MethodPost, "/dead-letter/"+ids[0].String()+"/reprocess", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	revived := decode[jobqueue.Job](t, resp).Data
	assert.Equal(t, jobqueue.JobPending, revived.Status)
	assert.Zero(t, revived.Attempts)

	resp = api.do(http.MethodPost, "/dead-letter/"+ids[0].String()+"/reprocess", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.do(http.MethodDelete, "/dead-letter?queue=TAX_SUBMISSION", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[map[string]int](t, resp).Data["removed"])
}

func TestWorkersAPI(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	_, err := api.manager.CreateQueue(jobqueue.QueueEmail)
	require.NoError(t, err)
	job, err := api.manager.AddJob(context.Background(), jobqueue.QueueEmail, nil)
	require.NoError(t, err)

	resp := api.do(http.MethodPost, "/workers", map[string]any{"name": "mailer", "queue_types": []string{"EMAIL"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	worker := decode[jobqueue.Worker](t, resp).Data
	assert.Equal(t, jobqueue.WorkerIdle, worker.Status)

	resp = api.do(http.MethodPost, "/workers", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	path := "/workers/" + worker.ID.String()

	resp = api.do(http.MethodPost, path+"/heartbeat", map[string]any{"current_job_id": job.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, jobqueue.WorkerBusy, decode[jobqueue.Worker](t, resp).Data.Status)

	resp = api.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.do(http.MethodPost, path+"/heartbeat", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	idle := decode[jobqueue.Worker](t, resp).Data
	assert.Equal(t, jobqueue.WorkerIdle, idle.Status)
	assert.Equal(t, 1, idle.JobsProcessed)

	resp = api.do(http.MethodGet, "/workers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]jobqueue.Worker](t, resp).Data, 1)

	resp = api.do(http.MethodPost, path+"/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, jobqueue.WorkerStopped, decode[jobqueue.Worker](t, resp).Data.Status)

	resp = api.do(http.MethodPost, path+"/heartbeat", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsAndHealthAPI(t *testing.T) {
	t.Parallel()

	failing := httpserver.Check("redis", func(context.Context) error { return errors.New("connection refused") })
	api := newTestAPI(t)
	_, err := api.manager.CreateQueue(jobqueue.QueueEmail)
	require.NoError(t, err)

	resp := api.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "engine not started")

	api.start()
	resp = api.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	withRedis := newTestAPI(t, jobs.WithReadinessChecks(failing))
	withRedis.start()
	resp = withRedis.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	job, err := api.manager.AddJob(context.Background(), jobqueue.QueueEmail, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		j, err := api.manager.GetJob(job.ID)
		return err == nil && j.Status == jobqueue.JobCompleted
	}, 3*time.Second, 5*time.Millisecond)

	resp = api.do(http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[jobqueue.Stats](t, resp).Data
	assert.Equal(t, 1, st.TotalJobs)
	assert.Equal(t, 1, st.ByStatus[jobqueue.JobCompleted])
	assert.Equal(t, 1, st.ActiveQueues)
	require.Len(t, st.RecentJobs, 1)
	assert.Equal(t, job.ID, st.RecentJobs[0].ID)
}

func TestErrorEnvelope(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	resp := api.do(http.MethodGet, "/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

	body := decode[any](t, resp)
	require.NotNil(t, body.Error)
	assert.Equal(t, jobs.CodeNotFound, body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
	assert.Nil(t, body.Data)
}
