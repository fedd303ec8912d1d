package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/swiftloan/api/internal/auth"
	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/db"
	httpx "github.com/swiftloan/api/internal/http"
	"github.com/swiftloan/api/internal/observability"
	"github.com/swiftloan/api/internal/queue/redisclient"
	"github.com/swiftloan/api/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	if cfg.OTELEndpoint != "" {
		shutdown, err := observability.InitTracer(context.Background(), "swiftloan-api", cfg.OTELEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()
		}
	}

	promReg := prometheus.NewRegistry()
	prom := observability.NewProm(promReg)

	dbHandle := db.NewHandle(cfg.DBURL)
	defer dbHandle.Close()

	pool, err := dbHandle.Acquire()
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	{
		ctx, cancel := config.WithTimeout(5 * time.Second)
		err := db.EnsureAdminUser(ctx, pool, cfg)
		cancel()
		if err != nil {
			log.Error("admin seed failed", "err", err)
			os.Exit(1)
		}
	}

	var redisClient *redisclient.Client
	if cfg.RedisAddr != "" {
		redisClient = redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
	}

	uploader := storage.NewCloudinary(storage.CloudinaryConfig{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryFolder,
	})

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL())

	router := httpx.NewRouter(httpx.RouterDeps{
		Cfg:      cfg,
		Log:      log,
		Pool:     pool,
		Redis:    redisClient,
		Prom:     prom,
		PromReg:  promReg,
		JWT:      jwtManager,
		Uploader: uploader,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      65 * time.Second, // uploads can be slow
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
