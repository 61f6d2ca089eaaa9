// Command mascd runs the MASC coordination daemon: the Room Store,
// Tool Dispatcher, Lifecycle Supervisor, and HTTP surface (JSON-RPC
// over /mcp, SSE over /sse, and a read-only REST mirror) in one
// process. Staged startup and graceful shutdown follow
// cmd/server/main.go's shape.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/masc-dev/masc/internal/authn"
	"github.com/masc-dev/masc/internal/backend"
	"github.com/masc-dev/masc/internal/backend/fs"
	"github.com/masc-dev/masc/internal/backend/memory"
	"github.com/masc-dev/masc/internal/backend/redis"
	"github.com/masc-dev/masc/internal/backend/relational"
	"github.com/masc-dev/masc/internal/bus"
	"github.com/masc-dev/masc/internal/config"
	"github.com/masc-dev/masc/internal/crypt"
	"github.com/masc-dev/masc/internal/dispatch"
	"github.com/masc-dev/masc/internal/drain"
	"github.com/masc-dev/masc/internal/room"
	"github.com/masc-dev/masc/internal/supervisor"
	"github.com/masc-dev/masc/internal/tools"
	"github.com/masc-dev/masc/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:   "mascd",
		Short: "mascd — Multi-Agent Swarm Coordination daemon",
		Long: `mascd is the coordination kernel for a swarm of LLM agents: a single
Room Store behind a JSON-RPC tool surface, a Server-Sent Events
notification stream, and a background Lifecycle Supervisor that
reclaims stale agents, handoffs, and interrupts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mascd %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting mascd",
		zap.String("version", version),
		zap.String("port", cfg.Port),
		zap.String("storage_type", cfg.StorageType),
		zap.String("cluster", cfg.ClusterName),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- 1. Encryption ---
	// Built before the backend so the Room Store can hand it to every
	// entity that seals sensitive fields at rest (handoff capsules,
	// cache values, checkpoint state).
	box, err := buildCryptBox(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	if box.Enabled() {
		logger.Info("at-rest encryption enabled")
	} else {
		logger.Warn("at-rest encryption disabled — set MASC_ENCRYPTION_KEY to enable")
	}

	// --- 2. Backend ---
	be, closeBackend, err := buildBackend(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer closeBackend()

	// --- 3. Notification Bus ---
	b := bus.New(bus.Config{RingSize: 1024})
	go b.Run(ctx)

	// --- 4. Room Store ---
	store := room.New(room.Config{
		Backend:           be,
		Bus:               b,
		Box:               box,
		Cluster:           cfg.ClusterName,
		RoomID:            "default",
		HeartbeatTTL:      cfg.HeartbeatTTL,
		ZombieTTL:         cfg.ZombieTTL,
		HandoffTTL:        cfg.HandoffTTL,
		HandoffConsumeTTL: cfg.HandoffConsumeTTL,
		InterruptTTL:      cfg.InterruptTTL,
	})

	// --- 5. Auth + rate limiting ---
	authCfg := dispatch.AuthConfig{}
	if cfg.Token != "" {
		tokens := authn.NewRegistry()
		if err := tokens.Add("default", cfg.Token); err != nil {
			return fmt.Errorf("failed to register bearer token: %w", err)
		}
		limiter := authn.NewRateLimiter(20, 10)
		tools.WireAuth(tokens)
		tools.WireRateLimiter(limiter)
		authCfg = dispatch.AuthConfig{Enabled: true, Tokens: tokens, RateLimiter: limiter}
		logger.Info("bearer-token auth enabled")
	}

	// --- 6. Tool Dispatcher ---
	gate := drain.New()
	registry := tools.RegisterAll()
	reg := prometheus.NewRegistry()
	metrics := transport.NewMetrics(reg, func() float64 { return float64(gate.Active()) })
	dispatcher := dispatch.New(registry, store, authCfg, gate, nil)
	dispatcher.OnCall(metrics.Observe)

	// --- 7. Lifecycle Supervisor ---
	sup, err := supervisor.New(store, supervisor.Config{
		TempoBase:              cfg.TempoBase,
		TempoConcurrencyTarget: cfg.TempoConcurrencyTarget,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}
	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}

	// --- 8. HTTP server ---
	sseHub := transport.NewSSEHub(b, store.RoomID())
	router := transport.NewRouter(transport.Config{
		Dispatcher:     dispatcher,
		Store:          store,
		Registry:       registry,
		SSE:            sseHub,
		Logger:         logger,
		MetricsHandler: transport.MetricsHandlerFor(reg),
	})

	addr := ":" + cfg.Port
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down mascd")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer shutdownCancel()

	// New tool calls are rejected the moment the gate closes, before
	// the HTTP listener itself stops accepting connections, so no call
	// can start after the drain wait below begins.
	gate.Close()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	if !gate.Wait(shutdownCtx.Done()) {
		logger.Warn("drain timeout exceeded with tool calls still in flight",
			zap.Int("active", gate.Active()))
	}

	if err := sup.Stop(); err != nil {
		logger.Warn("supervisor shutdown error", zap.Error(err))
	}

	logger.Info("mascd stopped")
	return nil
}

// buildCryptBox builds the Box used to seal sensitive fields at rest.
// An empty key yields a disabled (pass-through) Box, per spec.md §9's
// at-rest-encryption design note: encryption is opt-in via
// MASC_ENCRYPTION_KEY, never mandatory.
func buildCryptBox(hexKey string) (*crypt.Box, error) {
	if hexKey == "" {
		return crypt.NewBox(nil)
	}
	return crypt.NewBoxFromHex(hexKey)
}

// buildBackend selects one of the four interchangeable Backend
// implementations per spec.md §4.1, returning a cleanup func the
// caller defers regardless of which backend was chosen.
func buildBackend(cfg config.Config, logger *zap.Logger) (backend.Backend, func(), error) {
	noop := func() {}

	switch cfg.StorageType {
	case "memory", "":
		return memory.New(), noop, nil

	case "fs":
		be, err := fs.New(filepath.Join(cfg.Root, ".masc"))
		if err != nil {
			return nil, noop, err
		}
		return be, noop, nil

	case "redis":
		if cfg.RedisURL == "" {
			return nil, noop, fmt.Errorf("MASC_REDIS_URL is required for storage type %q", cfg.StorageType)
		}
		be, err := redis.New(redis.Config{
			URL:        cfg.RedisURL,
			KeyPrefix:  "masc:",
			LockWait:   50 * time.Millisecond,
			LockExpiry: 30 * time.Second,
		})
		if err != nil {
			return nil, noop, err
		}
		return be, noop, nil

	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, noop, fmt.Errorf("MASC_POSTGRES_URL is required for storage type %q", cfg.StorageType)
		}
		be, err := relational.New(relational.Config{
			Driver:   "postgres",
			DSN:      cfg.PostgresURL,
			Logger:   logger,
			LogLevel: gormLogLevel(cfg.LogLevel),
		})
		if err != nil {
			return nil, noop, err
		}
		return be, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage type %q (want memory, fs, redis, or postgres)", cfg.StorageType)
	}
}

// gormLogLevel maps the application log level string to a GORM logger level.
func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "info":
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
