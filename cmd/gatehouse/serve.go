// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	authfile "github.com/gatehouse/gatehouse/internal/auth/file"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	authredis "github.com/gatehouse/gatehouse/internal/auth/redis"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/httpd"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication server",
		Long: `Start the Gatehouse HTTP server. Configuration is read from the
--config file when given; flags override file values.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	cmd.Flags().String("listen-addr", "", "HTTP listen address")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", "", "log format (json or text)")
	cmd.Flags().String("accounts.backend", "", "account store backend (file or postgres)")
	cmd.Flags().String("accounts.data-dir", "", "record directory for the file backend")
	cmd.Flags().String("accounts.database-url", "", "PostgreSQL URL for the postgres backend")
	cmd.Flags().String("sessions.backend", "", "session store backend (memory or redis)")
	cmd.Flags().String("sessions.redis-addr", "", "redis address for the redis backend")

	return cmd
}

// buildAccountStore creates the configured account store. The returned
// cleanup function releases any held connections and is safe to call once.
func buildAccountStore(ctx context.Context, cfg *config.Config) (auth.AccountStore, func(), error) {
	switch cfg.Accounts.Backend {
	case config.AccountBackendFile:
		fileStore, err := authfile.NewStore(cfg.Accounts.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return fileStore, func() {}, nil
	case config.AccountBackendPostgres:
		pool, err := store.Connect(ctx, cfg.Accounts.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo, err := authpg.NewAccountRepository(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown account backend %q", cfg.Accounts.Backend)
	}
}

// buildSessionStore creates the configured session store.
func buildSessionStore(cfg *config.Config) (auth.SessionStore, func(), error) {
	switch cfg.Sessions.Backend {
	case config.SessionBackendMemory:
		return auth.NewMemoryStore(), func() {}, nil
	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Sessions.RedisAddr})
		redisStore, err := authredis.NewStore(client, cfg.Sessions.TTL)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return redisStore, func() {
			if closeErr := client.Close(); closeErr != nil {
				slog.Debug("error closing redis client", "error", closeErr)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}

func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logging.SetDefault("gatehouse", version, cfg.LogFormat)
	logger := slog.Default()

	slog.Info("starting gatehouse",
		"listen_addr", cfg.ListenAddr,
		"accounts_backend", cfg.Accounts.Backend,
		"sessions_backend", cfg.Sessions.Backend,
		"log_format", cfg.LogFormat,
	)

	accounts, closeAccounts, err := buildAccountStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up account store: %w", err)
	}
	defer closeAccounts()

	sessionStore, closeSessions, err := buildSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up session store: %w", err)
	}
	defer closeSessions()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool { return true })
		metrics = obsServer.Metrics()

		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return fmt.Errorf("failed to start observability server: %w", obsErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	var sessions *auth.Manager
	if metrics != nil {
		sessions, err = auth.NewManagerWithMetrics(sessionStore, metrics, logger)
	} else {
		sessions, err = auth.NewManager(sessionStore)
	}
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	service, err := auth.NewServiceWithLogger(accounts, sessions, auth.NewArgon2idHasher(), logger)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	apiServer, err := httpd.NewServer(cfg.ListenAddr, service, sessions, cfg.Cookie, metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create api server: %w", err)
	}
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Gatehouse started")
	slog.Info("gatehouse ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors watches a server's error channel and cancels the
// context on error so a failed listener tears the whole process down.
// It exits when an error arrives, the channel closes, or the context ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
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
