package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/db"
	"github.com/swiftloan/api/internal/notifications"
	"github.com/swiftloan/api/internal/observability"
	"github.com/swiftloan/api/internal/queue/worker"
	"github.com/swiftloan/api/internal/repo/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	dbHandle := db.NewHandle(cfg.DBURL)
	defer dbHandle.Close()

	pool, err := dbHandle.Acquire()
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	jobsRepo := postgres.NewJobsRepo(pool, nil)
	usersRepo := postgres.NewUsersRepo(pool, nil)
	ticketsRepo := postgres.NewTicketsRepo(pool, nil)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log),
		notifications.ProtectedNotifierConfig{},
	)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		WorkerID:     workerID,
		PollInterval: 500 * time.Millisecond,
		Concurrency:  4,
	}, jobsRepo, usersRepo, ticketsRepo, notifier, log, nil)

	// health endpoint on a side port
	healthSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port+1),
		Handler:           w.HealthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker started", "worker_id", workerID)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	{
		sctx, cancel := config.WithTimeout(5 * time.Second)
		_ = healthSrv.Shutdown(sctx)
		cancel()
	}

	log.Info("worker shutdown complete")
}
