// Package httpserver runs an http.Handler with graceful shutdown and exposes
// liveness and readiness probes.
//
// Run blocks until the context is cancelled or the listener fails, then drains
// in-flight requests within the configured shutdown timeout. It composes with
// errgroup alongside the job manager:
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// Probes:
//
//	r.Get("/health/live", httpserver.LivenessHandler())
//	r.Get("/health/ready", httpserver.ReadinessHandler(log,
//		httpserver.Check("redis", redis.Healthcheck(client)),
//	))
package httpserver
