package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/faucet-ledger/api"
	"github.com/josh-kwaku/faucet-ledger/internal/clock"
	"github.com/josh-kwaku/faucet-ledger/internal/config"
	"github.com/josh-kwaku/faucet-ledger/internal/domain"
	"github.com/josh-kwaku/faucet-ledger/internal/events/kafka"
	"github.com/josh-kwaku/faucet-ledger/internal/faucet"
	"github.com/josh-kwaku/faucet-ledger/internal/handler"
	"github.com/josh-kwaku/faucet-ledger/internal/logging"
	"github.com/josh-kwaku/faucet-ledger/internal/middleware"
	"github.com/josh-kwaku/faucet-ledger/internal/repository"
	"github.com/josh-kwaku/faucet-ledger/internal/service"
)

var version = "dev"

type idempotencyStore interface {
	Get(ctx context.Context, key string, identity uuid.UUID) (*repository.IdempotencyCacheEntry, error)
	Reserve(ctx context.Context, entry *repository.IdempotencyCacheEntry) (bool, error)
	Set(ctx context.Context, entry *repository.IdempotencyCacheEntry) error
	Release(ctx context.Context, key string, identity uuid.UUID) error
	CleanExpired(ctx context.Context) (int64, error)
}

type transferStore interface {
	Create(ctx context.Context, t *domain.Transfer) error
	GetByIdentity(ctx context.Context, identity uuid.UUID, limit, offset int) ([]domain.Transfer, int, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("faucet-ledger", cfg.LogLevel, cfg.AppEnv)

	clk := clock.NewMonotonic(clock.System{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		db          *repository.DB
		transfers   transferStore
		idempotency idempotencyStore
	)
	if cfg.DatabaseURL != "" {
		conn, err := connectDB(ctx, cfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		applied, err := repository.Migrate(ctx, conn, repository.FindMigrationsDir())
		if err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied", "files", applied)

		db = repository.NewDB(conn)
		transfers = repository.NewTransferRepository(conn)
		idempotency = repository.NewIdempotencyRepository(conn)
	} else {
		slog.Warn("DATABASE_URL not set, journal and idempotency cache are in-memory")
		transfers = repository.NewMemoryTransferRepository()
		idempotency = repository.NewMemoryIdempotencyRepository(clk.Now)
	}

	ledger, err := faucet.New(cfg.AdminID, cfg.WithdrawalLimit, cfg.CooldownWindow())
	if err != nil {
		slog.Error("invalid faucet configuration", "error", err)
		os.Exit(1)
	}

	faucetSvc := service.NewFaucetService(ledger, clk, transfers)
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				slog.Error("failed to close kafka publisher", "error", err)
			}
		}()
		faucetSvc.WithPublisher(publisher)
		slog.Info("publishing transfer events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	slog.Info("faucet ready",
		"administrator", cfg.AdminID,
		"max_withdrawal", cfg.WithdrawalLimit,
		"min_window", cfg.CooldownWindow(),
	)

	faucetHandler := handler.NewFaucetHandler(faucetSvc)
	healthHandler := handler.NewHealthHandler(db, version, clk.Now)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.HandleFunc("GET /docs", handler.ServeDocs())
	mux.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(api.OpenAPI))

	public := []string{"/health", "/health/ready", "/docs", "/docs/"}
	if cfg.TokenClientKeyHash != "" {
		authHandler := handler.NewAuthHandler(cfg.TokenClientKeyHash, cfg.JWTSecret, cfg.JWTExpiry)
		mux.HandleFunc("POST /api/v1/auth/token", authHandler.IssueToken)
		public = append(public, "/api/v1/auth/token")
	}

	mux.HandleFunc("GET /api/v1/faucet", faucetHandler.State)
	mux.HandleFunc("GET /api/v1/faucet/max-withdrawal", faucetHandler.MaxWithdrawal)
	mux.HandleFunc("GET /api/v1/faucet/min-window", faucetHandler.MinWindow)
	mux.HandleFunc("GET /api/v1/faucet/eligibility", faucetHandler.Eligibility)
	mux.HandleFunc("GET /api/v1/faucet/transfers", faucetHandler.Transfers)
	mux.HandleFunc("POST /api/v1/faucet/deposits", faucetHandler.Deposit)
	mux.HandleFunc("POST /api/v1/faucet/withdrawals", faucetHandler.Withdraw)
	mux.HandleFunc("PUT /api/v1/faucet/limit", faucetHandler.SetLimit)
	mux.HandleFunc("PUT /api/v1/faucet/window", faucetHandler.SetWindow)
	mux.HandleFunc("POST /api/v1/faucet/sweep", faucetHandler.SweepAll)
	mux.HandleFunc("POST /api/v1/faucet/disable", faucetHandler.Disable)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	var h http.Handler = mux
	h = middleware.Idempotency(idempotency, clk.Now)(h)
	h = middleware.Logging(h)
	h = limiter.Middleware(h)
	h = middleware.Auth(cfg.JWTSecret, public...)(h)
	h = middleware.Tracing(h)
	h = middleware.Recovery(h)

	go cleanIdempotencyCache(ctx, idempotency)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	final := ledger.Snapshot()
	slog.Info("server stopped", "balance", final.Balance, "active", final.Active)
}

func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var err error
	for i := range 30 {
		var db *sql.DB
		if db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connectDB: %w", ctx.Err())
		case <-time.After(time.Second):
		}
	}

	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}

func cleanIdempotencyCache(ctx context.Context, store idempotencyStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanExpired(ctx)
			if err != nil {
				slog.Warn("idempotency cache cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("idempotency cache cleaned", "removed", n)
			}
		}
	}
}
