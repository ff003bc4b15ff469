package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/simaogato/portfolio-engine/internal/adapter/cache"
	grpcadapter "github.com/simaogato/portfolio-engine/internal/adapter/grpc"
	httpadapter "github.com/simaogato/portfolio-engine/internal/adapter/http"
	"github.com/simaogato/portfolio-engine/internal/adapter/repository/memory"
	"github.com/simaogato/portfolio-engine/internal/adapter/repository/postgres"
	"github.com/simaogato/portfolio-engine/internal/app"
	"github.com/simaogato/portfolio-engine/internal/config"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	useMemory := flag.Bool("memory", false, "use the in-memory store instead of PostgreSQL")
	flag.Parse()

	// 1. Load configuration and logger
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	ctx := logger.ToContext(context.Background(), log)

	// 2. Setup storage
	var repos domain.Repositories
	if *useMemory {
		log.Warn("Using the in-memory store; data is lost on exit")
		repos = memory.NewStore().Repositories()
	} else {
		db, err := postgres.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx); err != nil {
				log.Error("Failed to migrate database", "error", err)
				os.Exit(1)
			}
		}
		repos = db.Repositories()
	}

	// 3. Initialize services; the report cache is closed on shutdown
	reportCache := cache.New(cfg.CacheTTL, cfg.CacheCleanup)
	defer reportCache.Close()
	services := app.New(repos, app.Options{UseSnapshots: cfg.UseSnapshots, Cache: reportCache})

	// 4. Start gRPC server
	grpcServer := grpcadapter.NewGRPCServer(
		grpcadapter.NewServer(services.Reports, services.TaxLots, services.Actions, services.Snapshots),
		cfg.APIToken,
	)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("Failed to listen", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server stopped with error", "error", err)
		}
	}()

	// 5. Start HTTP server
	handler := &httpadapter.Handler{
		Trades:    services.Trades,
		Cash:      services.Cash,
		Actions:   services.Actions,
		Snapshots: services.Snapshots,
		TaxLots:   services.TaxLots,
		RefData:   services.RefData,
		Reports:   services.Reports,
	}
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpadapter.NewRouter(handler, httpadapter.RouterConfig{
			Token:     cfg.APIToken,
			RateLimit: rate.Limit(cfg.RateLimitRPS),
			Burst:     cfg.RateLimitBurst,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server stopped with error", "error", err)
		}
	}()

	// Graceful shutdown
	waitForShutdown(log, grpcServer.GracefulStop, httpServer)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down both servers
func waitForShutdown(log *slog.Logger, stopGRPC func(), httpServer *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info("Shutting down gracefully", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
	log.Info("HTTP server stopped")

	stopGRPC()
	log.Info("gRPC server stopped")
}
