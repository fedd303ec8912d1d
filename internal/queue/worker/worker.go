package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/swiftloan/api/internal/domain/job"
	"github.com/swiftloan/api/internal/domain/ticket"
	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/notifications"
	"github.com/swiftloan/api/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id string, lastErr string) error
}

type UsersRepository interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type TicketsRepository interface {
	GetByID(ctx context.Context, id string) (ticket.Ticket, error)
}

type Config struct {
	WorkerID     string
	PollInterval time.Duration
	Concurrency  int
}

// Worker claims queued notification jobs from Postgres and delivers
// them through the configured Notifier.
type Worker struct {
	cfg      Config
	jobs     JobsRepository
	users    UsersRepository
	tickets  TicketsRepository
	notifier notifications.Notifier
	logger   *slog.Logger
	metrics  *observability.JobMetrics

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, jobs JobsRepository, users UsersRepository, tickets TicketsRepository, notifier notifications.Notifier, logger *slog.Logger, metrics *observability.JobMetrics) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if metrics == nil {
		metrics = observability.NewJobMetrics()
	}

	return &Worker{
		cfg:      cfg,
		jobs:     jobs,
		users:    users,
		tickets:  tickets,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run polls for jobs until ctx is cancelled. Each tick drains the queue:
// it keeps claiming until no pending job is due.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	var wg sync.WaitGroup
	wg.Add(w.cfg.Concurrency)

	for i := 0; i < w.cfg.Concurrency; i++ {
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}

	wg.Wait()
	w.logger.Info("worker stopped", "worker_id", w.cfg.WorkerID)
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				processed, err := w.ProcessOne(ctx)
				if err != nil {
					w.logger.Error("process job", "err", err)
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}
