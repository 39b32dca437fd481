// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/httpapi"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/task"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API server which handles signup, signin, signout,
and current-user requests, and enqueues background tasks to Redis.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	// Flag names match config file keys so posflag can merge them.
	cmd.Flags().String("server.addr", config.DefaultAPIAddr, "API listen address")
	cmd.Flags().String("server.metrics_addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().Bool("server.secure_cookies", true, "mark the session cookie Secure")
	cmd.Flags().String("redis.queue", config.DefaultQueueKey, "Redis list key for the task queue")
	cmd.Flags().String("log.format", config.DefaultLogFormat, "log format (json or text)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("gatehouse", version, cfg.Log.Format)

	slog.Info("starting API server",
		"addr", cfg.Server.Addr,
		"log_format", cfg.Log.Format,
	)

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured.
	var (
		obsServer *observability.Server
		metrics   *observability.Metrics
	)
	if cfg.Server.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.Server.MetricsAddr, func() bool {
			return pool.Ping(context.Background()) == nil
		})
		metrics = obsServer.Metrics()

		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	// Task dispatcher is optional: without Redis the API still serves, it
	// just skips enqueueing welcome emails.
	serviceOpts := []auth.Option{}
	if cfg.Redis.URL != "" {
		redisClient, err := task.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := redisClient.Close(); closeErr != nil {
				slog.Warn("error closing redis client", "error", closeErr)
			}
		}()

		dispatcherOpts := []task.DispatcherOption{task.WithQueueKey(cfg.Redis.Queue)}
		if metrics != nil {
			dispatcherOpts = append(dispatcherOpts, task.WithEnqueueCounter(metrics.TasksEnqueued))
		}
		dispatcher, err := task.NewDispatcher(task.NewRedisQueue(redisClient), dispatcherOpts...)
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, auth.WithDispatcher(dispatcher))

		slog.Info("task dispatcher ready", "queue", cfg.Redis.Queue)
	} else {
		slog.Warn("redis.url not set, background tasks disabled")
	}

	issuer, err := auth.NewIssuer(cfg.Token.Secret, cfg.Token.TTL)
	if err != nil {
		return err
	}

	svc, err := auth.NewService(
		authpg.NewUserRepository(pool),
		auth.NewArgon2idHasher(),
		issuer,
		serviceOpts...,
	)
	if err != nil {
		return err
	}

	handler, err := httpapi.NewHandler(svc, httpapi.HandlerConfig{
		TokenTTL:      issuer.TTL(),
		SecureCookies: cfg.Server.SecureCookies,
	})
	if err != nil {
		return err
	}

	apiServer := httpapi.NewServer(cfg.Server.Addr, httpapi.NewRouter(handler, metrics))
	apiErrChan, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("API_START_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("API server started")
	slog.Info("API server ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping API server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// stopObservability stops the observability server during startup cleanup.
func stopObservability(s *observability.Server) {
	if s == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := s.Stop(shutdownCtx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors watches a server's error channel and cancels the
// context on error so a failed listener brings the whole process down.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully.
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
