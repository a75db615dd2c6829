package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tgslot/game-engine/internal/config"
	"github.com/tgslot/game-engine/internal/game"
	"github.com/tgslot/game-engine/internal/ledger"
	"github.com/tgslot/game-engine/internal/metrics"
	"github.com/tgslot/game-engine/internal/paytable"
	"github.com/tgslot/game-engine/internal/reel"
	"github.com/tgslot/game-engine/internal/rng"
	"github.com/tgslot/game-engine/internal/spin"
	"github.com/tgslot/game-engine/internal/store"
	"github.com/tgslot/game-engine/internal/topup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Game configuration ---
	cfg := config.Default()
	if path := os.Getenv("GAME_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			slog.Error("invalid game config", "path", path, "err", err)
			os.Exit(1)
		}
		cfg = loaded
		slog.Info("game config loaded", "path", path)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (balances will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Game engine ---
	src, err := rng.New()
	if err != nil {
		slog.Error("rng initialization failed", "err", err)
		os.Exit(1)
	}

	table, err := paytable.New(cfg.SymbolSet(), cfg.Values(), cfg.PayoutBase)
	if err != nil {
		slog.Error("invalid paytable", "err", err)
		os.Exit(1)
	}

	resolver, err := spin.NewResolver(src, table, cfg.SymbolSet(), cfg.ReelCount)
	if err != nil {
		slog.Error("invalid resolver configuration", "err", err)
		os.Exit(1)
	}

	led := ledger.New(st, cfg.InitialBalance)
	reconciler := topup.NewReconciler(led)

	// --- WebSocket hub ---
	wsHub := game.NewWSHub()
	go wsHub.Run()

	// --- Game service ---
	timings := reel.Timings{
		SpinDuration:   cfg.Reveal.SpinDuration,
		Stagger:        cfg.Reveal.Stagger,
		SettleDuration: cfg.Reveal.SettleDuration,
	}
	svc := game.NewService(led, resolver, reconciler, cfg.CreditPackages(), cfg.BetCost, timings, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware: the mini-app frontend is served from another origin.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"game-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint for balance and reveal events.
	r.Get("/ws", wsHub.HandleWS)

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second, // a spin response waits out the reveal
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("game-engine listening", "port", port, "reels", cfg.ReelCount, "bet", cfg.BetCost)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down game-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("game-engine stopped")
}
