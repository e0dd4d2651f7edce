package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/config"
	"github.com/atmx/portfolio-engine/internal/engine"
	"github.com/atmx/portfolio-engine/internal/metrics"
	"github.com/atmx/portfolio-engine/internal/portfolio"
	"github.com/atmx/portfolio-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger())

	ctx := context.Background()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()
	durable := false

	switch {
	case cfg.Store.DatabaseURL != "":
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st, durable = pg, true
		slog.Info("connected to PostgreSQL")

	case cfg.Store.SQLitePath != "":
		lite, err := store.OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			slog.Error("sqlite open failed", "path", cfg.Store.SQLitePath, "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, func() { lite.Close() })
		st, durable = lite, true
		slog.Info("using SQLite store", "path", cfg.Store.SQLitePath)

	default:
		slog.Warn("DATABASE_URL and SQLITE_PATH not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// Wrap with Redis read-through cache if configured.
	if cfg.Store.RedisURL != "" {
		if !durable {
			slog.Warn("REDIS_URL ignored without a durable store")
		} else {
			opt, err := redis.ParseURL(cfg.Store.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.Store.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.Store.CacheTTL.String())
		}
	}

	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- WebSocket hub ---
	wsHub := portfolio.NewWSHub()
	go wsHub.Run()
	defer wsHub.Close()

	// --- Portfolio service ---
	svc := portfolio.NewService(st, portfolio.Options{
		Engine: engine.Options{
			TakeProfitPct: cfg.Engine.TakeProfitPct,
			StopLossPct:   cfg.Engine.StopLossPct,
			RiskFreeRate:  cfg.Engine.RiskFreeRate,
		},
		DefaultCash: decimal.NewFromFloat(cfg.Engine.DefaultInitialCash),
	}, wsHub)

	if err := svc.Sessions().StartJanitor(cfg.Sessions.JanitorSchedule, cfg.Sessions.IdleTTL); err != nil {
		slog.Error("session janitor", "err", err)
		os.Exit(1)
	}
	defer svc.Sessions().Stop()

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"portfolio-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for ledger updates. Registered outside the
		// timeout group: it is long-lived.
		r.Get("/ws", wsHub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
			svc.Routes(r)
		})
	})

	// --- Server ---
	port := strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("portfolio-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down portfolio-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("portfolio-engine stopped")
}
