// Package main is the entry point for the mini-app factory server.
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

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OpenxAI-Network/miniapp-factory/internal/blockchain"
	"github.com/OpenxAI-Network/miniapp-factory/internal/config"
	"github.com/OpenxAI-Network/miniapp-factory/internal/database"
	"github.com/OpenxAI-Network/miniapp-factory/internal/deployer"
	"github.com/OpenxAI-Network/miniapp-factory/internal/handler"
	"github.com/OpenxAI-Network/miniapp-factory/internal/middleware"
	"github.com/OpenxAI-Network/miniapp-factory/internal/repohost"
	"github.com/OpenxAI-Network/miniapp-factory/internal/repository"
	"github.com/OpenxAI-Network/miniapp-factory/internal/scheduler"
	"github.com/OpenxAI-Network/miniapp-factory/internal/service"
	"github.com/OpenxAI-Network/miniapp-factory/internal/wallet"
)

func main() {
	// Setup structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting mini-app factory",
		slog.Int("port", cfg.Server.Port),
	)

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	// Local signing identity, created on first boot
	signer, err := wallet.Load(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to load wallet: %v", err)
	}
	logger.Info("Wallet loaded", slog.String("address", signer.Address()))

	// Repositories
	pool := db.Pool()
	projects := repository.NewProjectRepository(pool)
	deployments := repository.NewDeploymentRepository(pool)
	workers := repository.NewWorkerRepository(pool)
	credits := repository.NewCreditRepository(pool)
	promoCodes := repository.NewPromoCodeRepository(pool)
	waitlist := repository.NewWaitlistRepository(pool)

	// Infrastructure clients
	hw := deployer.NewHyperstack(cfg.Hyperstack)
	repoHost := repohost.NewGitHub(cfg.RepoHost)
	sessions := scheduler.NewSessions(cfg.Scheduler, hw, signer)

	factory := service.NewFactoryService(
		projects, deployments, credits, promoCodes, workers,
		repoHost, sessions, signer,
	)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Background loops
	fleet := scheduler.NewFleetManager(workers, deployments, hw, sessions, signer, cfg.Scheduler.FleetTick, logger)
	go fleet.Run(bgCtx)

	dispatcher := scheduler.NewDispatcher(deployments, projects, workers, sessions, cfg.Scheduler.DispatchTick, logger)
	go dispatcher.Run(bgCtx)

	watcher := scheduler.NewWatcher(deployments, projects, workers, sessions, cfg.Scheduler.WatchTick, logger)
	go watcher.Run(bgCtx)

	startChainListeners(bgCtx, cfg, projects, credits, logger)

	// Setup router
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(middleware.Auth())

	// Health check endpoint (no auth required)
	r.Get("/health", healthHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.Redis.Enabled {
			redis, err := database.NewRedis(cfg.Redis)
			if err != nil {
				log.Fatalf("Failed to connect to Redis: %v", err)
			}
			logger.Info("Connected to Redis")
			r.Use(middleware.RateLimit(redis, middleware.DefaultRateLimitConfig()))
		}

		r.Mount("/factory", handler.NewFactoryHandler(factory).Routes())
		r.Mount("/showcase", handler.NewShowcaseHandler(projects, deployments, workers).Routes())
		r.Mount("/waitlist", handler.NewWaitlistHandler(waitlist).Routes())
	})

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down server", slog.String("signal", sig.String()))
	bgCancel()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	logger.Info("Server stopped gracefully")
}

// startChainListeners wires the on-chain event loops. Each piece is optional:
// a deployment without chain credentials still serves the full HTTP surface.
func startChainListeners(
	ctx context.Context,
	cfg *config.Config,
	projects repository.ProjectRepository,
	credits repository.CreditRepository,
	logger *slog.Logger,
) {
	if cfg.Chain.WSRPC != "" {
		wsClient, err := ethclient.DialContext(ctx, cfg.Chain.WSRPC)
		if err != nil {
			log.Fatalf("Failed to connect to chain websocket: %v", err)
		}

		if cfg.Chain.NFTContract != "" {
			go blockchain.NewNFTSync(wsClient, projects, cfg.Chain.NFTContract, logger).Run(ctx)
		}
		if cfg.Chain.Deposit != "" {
			go blockchain.NewDepositListener(wsClient, credits, cfg.Chain.Deposit, logger).Run(ctx)
		}
	} else {
		logger.Warn("No chain websocket configured, ownership sync and deposits disabled")
	}

	if cfg.Chain.HTTPRPC != "" && cfg.Chain.NFTContract != "" && cfg.Chain.NFTMinterKey != "" {
		httpClient, err := ethclient.DialContext(ctx, cfg.Chain.HTTPRPC)
		if err != nil {
			log.Fatalf("Failed to connect to chain rpc: %v", err)
		}
		key, err := crypto.HexToECDSA(cfg.Chain.NFTMinterKey)
		if err != nil {
			log.Fatalf("Failed to parse minter key: %v", err)
		}
		go blockchain.NewMinter(httpClient, projects, cfg.Chain.NFTContract, key, cfg.Scheduler.MintTick, logger).Run(ctx)
	} else {
		logger.Warn("Minter not configured, projects stay unminted")
	}
}

// healthHandler returns a simple health check that verifies the database.
func healthHandler(db *database.Postgres) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","component":"database"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}
