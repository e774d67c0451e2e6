package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiaot623/gogo/a2ui/internal/backend"
	"github.com/xiaot623/gogo/a2ui/internal/config"
	"github.com/xiaot623/gogo/a2ui/internal/hub"
	"github.com/xiaot623/gogo/a2ui/internal/logging"
	"github.com/xiaot623/gogo/a2ui/internal/policy"
	"github.com/xiaot623/gogo/a2ui/internal/service"
	"github.com/xiaot623/gogo/a2ui/internal/session"
	"github.com/xiaot623/gogo/a2ui/internal/telemetry"
	internalhttp "github.com/xiaot623/gogo/a2ui/internal/transport/http"
	"github.com/xiaot623/gogo/a2ui/internal/transport/rpc"
	"github.com/xiaot623/gogo/a2ui/internal/transport/ws"
	"github.com/xiaot623/gogo/a2ui/internal/view"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	slog.SetDefault(logger)

	logger.Info("starting a2ui server",
		"version", version,
		"http_port", cfg.HTTP.Port,
		"rpc_port", cfg.RPC.Port,
		"session_store", cfg.Session.Store,
		"backend_url", cfg.Backend.URL,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tel, err := telemetry.New(&telemetry.Config{
		ServiceName:    "a2ui",
		ServiceVersion: version,
		Enabled:        cfg.Telemetry.Enabled,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	// Initialize session store
	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	defer store.Close()

	sessions := session.NewAdapter(store, logger,
		session.WithDefaults(cfg.Session.UserID, cfg.Session.AppName),
	)
	go sessions.RunExpirySweeper(ctx, cfg.Session.SweepInterval)

	builder, err := view.NewBuilder(view.Config{
		SurfaceID:       cfg.View.SurfaceID,
		DefaultLanguage: cfg.View.DefaultLanguage,
		MaxCandidates:   cfg.View.MaxCandidates,
	})
	if err != nil {
		log.Fatalf("Failed to initialize view builder: %v", err)
	}

	opts := []service.Option{service.WithTelemetry(tel)}
	if cfg.Policy.Enabled {
		policyEngine, err := policy.NewEngineFromFile(ctx, cfg.Policy.File)
		if err != nil {
			log.Fatalf("Failed to initialize policy engine: %v", err)
		}
		opts = append(opts, service.WithPolicy(policyEngine))
	}

	// Initialize hub
	connectionHub := hub.NewHub(logger, cfg.WS.BufferSize)
	go connectionHub.Run(ctx)
	opts = append(opts, service.WithPublisher(connectionHub))

	svc := service.New(sessions, backend.New(cfg.Backend.URL, cfg.Backend.Timeout, logger), builder, logger, opts...)
	go svc.RunSequencePruner(ctx, cfg.Session.SweepInterval, cfg.Session.TTL)

	wsServer := ws.NewServer(cfg, connectionHub, svc, logger)
	httpServer := internalhttp.NewServer(svc, connectionHub, wsServer, cfg.HTTP.APIKey)

	rpcServer, err := rpc.NewServer(svc, connectionHub, logger)
	if err != nil {
		log.Fatalf("Failed to initialize RPC server: %v", err)
	}

	// Start HTTP and WebSocket server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Start RPC server
	if addr, ok := rpcAddr(cfg); ok {
		go func() {
			if err := rpcServer.Start(addr); err != nil {
				log.Fatalf("Failed to start RPC server: %v", err)
			}
		}()
	} else {
		logger.Info("rpc server disabled")
	}

	logger.Info("servers started", "http_port", cfg.HTTP.Port, "rpc_port", cfg.RPC.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down a2ui server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown HTTP server gracefully", "error", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown RPC server gracefully", "error", err)
	}
	stop()

	logger.Info("a2ui server stopped")
}

func newStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	opts := []session.StoreOption{session.WithTTL(cfg.Session.TTL)}

	switch session.StoreType(cfg.Session.Store) {
	case session.StoreTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		opts = append(opts, session.WithRedisClient(client))
	case session.StoreTypeSQLite:
		opts = append(opts, session.WithSQLiteDSN(cfg.SQLite.DSN))
	}

	return session.NewStore(session.StoreType(cfg.Session.Store), opts...)
}

// rpcAddr returns the RPC listen address. Port 0 disables the listener.
func rpcAddr(cfg *config.Config) (string, bool) {
	if cfg.RPC.Port == 0 {
		return "", false
	}
	return fmt.Sprintf(":%d", cfg.RPC.Port), true
}
