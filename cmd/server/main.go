package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"daypulse/internal/auth"
	"daypulse/internal/config"
	"daypulse/internal/db"
	api "daypulse/internal/http"
	"daypulse/internal/repo"
	"daypulse/internal/service"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	authManager := auth.NewManager(cfg.JWTSecret)
	repository := repo.New(pool)
	svc := service.New(repository, authManager)

	// The reconciliation sweep is date-driven and idempotent; the in-process
	// cron is just one possible trigger for it.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReconcileSpec, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := svc.RunDailyReconciliation(runCtx, svc.Now()); err != nil {
			log.Printf("daily reconciliation failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid reconcile cron spec %q: %v", cfg.ReconcileSpec, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	handler := &api.API{Repo: repository, Service: svc, Auth: authManager}
	if cfg.CORSOrigin != "" {
		handler.Origins = strings.Split(cfg.CORSOrigin, ",")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
