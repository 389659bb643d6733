package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labdesk/internal/billing"
	"labdesk/internal/config"
	"labdesk/internal/database"
	"labdesk/internal/handlers"
	"labdesk/internal/intake"
	"labdesk/internal/locks"
	"labdesk/internal/logger"
	"labdesk/internal/logstore"
	"labdesk/internal/metrics"
	"labdesk/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg, lg)
	if err != nil {
		lg.Fatal("Database unavailable", "error", err)
	}
	if err := database.Seed(db, cfg, lg); err != nil {
		lg.Fatal("Seeding failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var locker locks.Locker = locks.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			lg.Fatal("Redis unavailable", "addr", cfg.RedisAddr, "error", err)
		}
		locker = locks.NewRedisLocker(rdb, 0)
		lg.Info("Using redis locks", "addr", cfg.RedisAddr)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	intakeSvc := intake.NewService(db, logstore.New(), m, lg.With("component", "intake"))
	invoiceSvc := billing.NewInvoiceService(db, locker, billing.FixedRate{Value: cfg.TaxRate}, m, lg.With("component", "invoices"))
	reconciler := billing.NewReconciler(db, locker, m, lg.With("component", "payments"))

	if cfg.OverdueSweepInterval > 0 {
		overdue := billing.NewOverduePolicy(db, m, lg.With("component", "overdue"))
		go overdue.RunSweeper(ctx, cfg.OverdueSweepInterval)
	}

	h := handlers.New(handlers.Deps{
		DB:         db,
		Intake:     intakeSvc,
		Invoices:   invoiceSvc,
		Reconciler: reconciler,
		Log:        lg,
	})
	r := server.NewRouter(cfg, server.Deps{DB: db, Handler: h, Log: lg, Metrics: m})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("Starting server", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("Server error", "error", err)
		}
	}()

	<-ctx.Done()
	lg.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("Graceful shutdown failed", "error", err)
	}
}
