// Package jobs exposes the job engine over a JSON HTTP API.
//
// Mount it on any chi router:
//
//	api := jobs.New(manager, jobs.WithLogger(log), jobs.WithReadinessChecks(
//		httpserver.Check("redis", redis.Healthcheck(client)),
//	))
//	r := chi.NewRouter()
//	r.Mount("/api", api.Handle())
//
// Successful responses wrap their payload as {"data": ...}. Failures use
// {"error": {"code": "...", "message": "..."}} with the status derived from
// the jobqueue error taxonomy: not found 404, invalid state 409, rate limited
// 429, invalid input 400, anything else 500.
package jobs
