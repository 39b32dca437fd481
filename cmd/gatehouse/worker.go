// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/task"
)

// NewWorkerCmd creates the worker subcommand.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start the background task worker",
		Long: `Start the worker process which consumes tasks from the Redis
queue and executes them, such as sending welcome emails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), cmd)
		},
	}

	cmd.Flags().String("server.metrics_addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("redis.queue", config.DefaultQueueKey, "Redis list key for the task queue")
	cmd.Flags().String("log.format", config.DefaultLogFormat, "log format (json or text)")

	return cmd
}

func runWorker(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Redis.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("redis.url (or REDIS_URL) is required")
	}

	logging.SetDefault("gatehouse-worker", version, cfg.Log.Format)

	slog.Info("starting worker process",
		"queue", cfg.Redis.Queue,
		"log_format", cfg.Log.Format,
	)

	redisClient, err := task.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			slog.Warn("error closing redis client", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer *observability.Server
		metrics   *observability.Metrics
	)
	if cfg.Server.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.Server.MetricsAddr, func() bool {
			return redisClient.Ping(context.Background()).Err() == nil
		})
		metrics = obsServer.Metrics()

		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	workerOpts := []task.WorkerOption{task.WithWorkerQueueKey(cfg.Redis.Queue)}
	if metrics != nil {
		workerOpts = append(workerOpts, task.WithProcessedCounter(metrics.TasksProcessed))
	}
	worker, err := task.NewWorker(task.NewRedisQueue(redisClient), workerOpts...)
	if err != nil {
		return err
	}
	if err := worker.Register(auth.TaskWelcomeEmail, task.WelcomeEmailHandler(&task.LogMailer{})); err != nil {
		return err
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	cmd.Println("Worker process started")
	slog.Info("worker process ready", "queue", cfg.Redis.Queue)

	err = worker.Run(ctx)
	if errors.Is(err, context.Canceled) {
		// Cancellation is the normal shutdown path.
		err = nil
	}

	slog.Info("shutting down...")
	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			slog.Warn("error stopping observability server", "error", stopErr)
		}
	}

	slog.Info("shutdown complete")
	return err
}
