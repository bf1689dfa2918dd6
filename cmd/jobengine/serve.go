package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/jobengine/modules/jobs"
	"github.com/dmitrymomot/jobengine/pkg/httpserver"
	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
	"github.com/dmitrymomot/jobengine/pkg/logger"
	"github.com/dmitrymomot/jobengine/pkg/ratelimit"
	"github.com/dmitrymomot/jobengine/pkg/redis"
)

func serveCmd() *cobra.Command {
	var queuesFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if queuesFile != "" {
				cfg.Queue.QueuesFile = queuesFile
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&queuesFile, "queues", "", "YAML queue definitions to create at boot (overrides JOBQUEUE_QUEUES_FILE)")
	return cmd
}

func serve(ctx context.Context, cfg appConfig) error {
	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithJobContext(),
	)
	logger.SetAsDefault(log)

	opts := []jobqueue.Option{
		jobqueue.WithConfig(cfg.Queue),
		jobqueue.WithLogger(log),
	}
	var checks []httpserver.NamedCheck

	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = client.Close() }()

		store, err := ratelimit.NewRedisStore(client, ratelimit.WithRedisKeyPrefix(cfg.ServiceName+":"))
		if err != nil {
			return fmt.Errorf("redis rate-limit store: %w", err)
		}
		opts = append(opts, jobqueue.WithRateLimitStore(store))
		checks = append(checks, httpserver.Check("redis", redis.Healthcheck(client)))
		log.InfoContext(ctx, "rate limits shared through redis")
	}

	manager := jobqueue.New(opts...)

	if path := cfg.Queue.QueuesFile; path != "" {
		defs, err := jobqueue.LoadQueueDefinitions(path)
		if err != nil {
			return err
		}
		created, err := manager.CreateQueues(defs...)
		if err != nil {
			return fmt.Errorf("create queues from %s: %w", path, err)
		}
		log.InfoContext(ctx, "queues loaded", slog.String("file", path), slog.Int("count", len(created)))
	}

	api := jobs.New(manager, jobs.WithLogger(log), jobs.WithReadinessChecks(checks...))
	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(manager.Run(ctx))
	g.Go(func() error { return srv.Run(ctx, api.Handle()) })
	g.Go(func() error {
		logEvents(ctx, log, manager)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("jobengine stopped with error", logger.Error(err))
		return err
	}
	log.Info("jobengine stopped")
	return nil
}

// logEvents mirrors engine notifications into the log until ctx is done.
func logEvents(ctx context.Context, log *slog.Logger, m *jobqueue.Manager) {
	sub := m.Subscribe(ctx)
	defer func() { _ = sub.Close() }()

	for msg := range sub.Receive(ctx) {
		ev := msg.Data
		attrs := []any{logger.Event(string(ev.Type))}
		if ev.QueueType != "" {
			attrs = append(attrs, logger.QueueType(string(ev.QueueType)))
		}
		if ev.Job != nil {
			attrs = append(attrs, logger.JobID(ev.Job.ID), logger.Status(string(ev.Job.Status)))
		}
		if ev.Worker != nil {
			attrs = append(attrs, logger.WorkerID(ev.Worker.ID))
		}
		log.DebugContext(ctx, "engine event", attrs...)
	}
}
