package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authcore.org/internal/auth"
	"authcore.org/internal/config"
	"authcore.org/internal/httpapi"
	"authcore.org/internal/obs"
	"authcore.org/internal/store/memory"
	"authcore.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var store auth.Store
	var closeStore func() error
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		closeStore = pgStore.Close
	} else {
		// Dev mode: in-memory store seeded with the builtin catalog.
		memStore := memory.New()
		if err := auth.Seed(context.Background(), memStore); err != nil {
			log.Fatalf("seed: %v", err)
		}
		store = memStore
		log.Printf("no AUTHCORE_PG_DSN set, using seeded in-memory store")
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	svc, err := auth.NewService(store, tokens)
	if err != nil {
		log.Fatalf("service: %v", err)
	}

	api := httpapi.New(svc, store, httpapi.Options{
		Version:        version,
		Production:     cfg.Production(),
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting authcore-api %s on %s (%s)", version, srv.Addr, cfg.Env)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if closeStore != nil {
		_ = closeStore()
	}
	log.Println("Stopped")
}
