package worker

import (
	"context"
	"errors"
	"time"

	domjob "github.com/swiftloan/api/internal/domain/job"
	"github.com/swiftloan/api/internal/jobs"
	"github.com/swiftloan/api/internal/notifications"
)

// ProcessOne claims a single due job and executes it. It returns false
// when the queue is empty.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.jobs.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, domjob.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncClaimed()
	started := time.Now()

	err = w.execute(ctx, j)
	w.metrics.ObserveDuration(time.Since(started))

	if err != nil {
		w.handleFailure(ctx, j, err)
		return true, nil
	}

	if err := w.jobs.MarkDone(ctx, j.ID); err != nil {
		_ = w.jobs.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.metrics.IncDone()
	w.logger.Info("job done", "job_id", j.ID, "type", j.Type, "attempt", j.Attempts)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j domjob.Job) error {
	payload, err := jobs.DecodePayload(j)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case jobs.LoanDecisionPayload:
		u, err := w.users.GetByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		return w.notifier.SendLoanDecision(ctx, notifications.LoanDecisionInput{
			Email:    u.Email,
			Name:     u.Name,
			LoanID:   p.LoanID,
			Decision: p.Decision,
			Amount:   p.Amount,
		})

	case jobs.SupportReplyPayload:
		u, err := w.users.GetByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		t, err := w.tickets.GetByID(ctx, p.TicketID)
		if err != nil {
			return err
		}
		return w.notifier.SendSupportReply(ctx, notifications.SupportReplyInput{
			Email:    u.Email,
			Name:     u.Name,
			TicketID: t.ID,
			Subject:  t.Subject,
		})

	default:
		return jobs.ErrInvalidJobType
	}
}

func (w *Worker) handleFailure(ctx context.Context, j domjob.Job, execErr error) {
	// malformed payloads never succeed on retry
	permanent := errors.Is(execErr, jobs.ErrInvalidJobType) || errors.Is(execErr, jobs.ErrInvalidJobPayload)

	if permanent || j.Attempts >= j.MaxAttempts {
		w.metrics.IncFailed()
		w.logger.Error("job failed permanently",
			"job_id", j.ID, "type", j.Type, "attempt", j.Attempts, "err", execErr)

		if err := w.jobs.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.logger.Error("mark failed", "job_id", j.ID, "err", err)
		}
		return
	}

	delay := ExponentialBackoff(j.Attempts)
	w.metrics.IncRetried()
	w.logger.Warn("job rescheduled",
		"job_id", j.ID, "type", j.Type, "attempt", j.Attempts, "delay", delay, "err", execErr)

	if err := w.jobs.Reschedule(ctx, j.ID, time.Now().UTC().Add(delay), execErr.Error()); err != nil {
		w.logger.Error("reschedule", "job_id", j.ID, "err", err)
	}
}
