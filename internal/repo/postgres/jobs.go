package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/swiftloan/api/internal/domain/job"
	"github.com/swiftloan/api/internal/observability"
)

var ErrJobNotFailed = errors.New("job is not failed")

type JobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{pool: pool, prom: prom}
}

func (r *JobsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const jobColumns = `id, type, payload, status, attempts, max_attempts, run_at, locked_at, locked_by, last_error, idempotency_key, created_at, updated_at`

func scanJob(row pgx.Row) (job.Job, error) {
	var j job.Job

	err := row.Scan(
		&j.ID, &j.Type, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts,
		&j.RunAt, &j.LockedAt, &j.LockedBy, &j.LastError, &j.IdempotencyKey,
		&j.CreatedAt, &j.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrJobNotFound
		}

		return job.Job{}, err
	}

	return j, nil
}

func (r *JobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	err := r.observe("jobs.create", func() error {
		_, err := r.pool.Exec(ctx, insertJobSQL,
			j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts,
			j.RunAt, j.LockedAt, j.LockedBy, j.LastError, j.IdempotencyKey,
			j.CreatedAt, j.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return job.Job{}, err
	}

	return j, nil
}

// CreateTx enqueues a job inside the caller's transaction so the
// notification commits or rolls back with the write that caused it.
func (r *JobsRepo) CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	err := r.observe("jobs.create_tx", func() error {
		_, err := tx.Exec(ctx, insertJobSQL,
			j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts,
			j.RunAt, j.LockedAt, j.LockedBy, j.LastError, j.IdempotencyKey,
			j.CreatedAt, j.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return job.Job{}, err
	}

	return j, nil
}

const insertJobSQL = `INSERT INTO jobs (
	id, type, payload, status, attempts, max_attempts, run_at, locked_at, locked_by, last_error, idempotency_key, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

// ClaimNext locks the oldest runnable pending job for this worker.
// SKIP LOCKED keeps concurrent workers from contending on the same row.
func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	now := time.Now().UTC()

	var j job.Job
	var err error

	err = r.observe("jobs.claim_next", func() error {
		j, err = scanJob(r.pool.QueryRow(ctx,
			`UPDATE jobs
			 SET status = $1, locked_at = $2, locked_by = $3, attempts = attempts + 1, updated_at = $2
			 WHERE id = (
				SELECT id FROM jobs
				WHERE status = $4 AND run_at <= $2
				ORDER BY run_at ASC, created_at ASC
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			 )
			 RETURNING `+jobColumns,
			job.StatusProcessing, now, workerID, job.StatusPending,
		))
		return err
	})

	return j, err
}

func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	return r.observe("jobs.mark_done", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE jobs
			 SET status = $1, locked_at = NULL, locked_by = NULL, last_error = NULL, updated_at = $2
			 WHERE id = $3`,
			job.StatusDone, time.Now().UTC(), id,
		)
		return err
	})
}

// Reschedule returns a job to pending for a later attempt.
func (r *JobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, lastErr string) error {
	return r.observe("jobs.reschedule", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE jobs
			 SET status = $1, run_at = $2, locked_at = NULL, locked_by = NULL, last_error = $3, updated_at = $4
			 WHERE id = $5`,
			job.StatusPending, runAt, lastErr, time.Now().UTC(), id,
		)
		return err
	})
}

func (r *JobsRepo) MarkFailed(ctx context.Context, id string, lastErr string) error {
	return r.observe("jobs.mark_failed", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE jobs
			 SET status = $1, locked_at = NULL, locked_by = NULL, last_error = $2, updated_at = $3
			 WHERE id = $4`,
			job.StatusFailed, lastErr, time.Now().UTC(), id,
		)
		return err
	})
}

func (r *JobsRepo) GetByID(ctx context.Context, id string) (job.Job, error) {
	var j job.Job
	var err error

	err = r.observe("jobs.get_by_id", func() error {
		j, err = scanJob(r.pool.QueryRow(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id,
		))
		return err
	})

	return j, err
}

// List returns recent jobs, optionally by status, for the admin queue
// inspector.
func (r *JobsRepo) List(ctx context.Context, status *job.Status, limit int) ([]job.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sql := `SELECT ` + jobColumns + ` FROM jobs`
	args := []interface{}{}

	if status != nil {
		sql += ` WHERE status = $1`
		args = append(args, *status)
	}

	sql += ` ORDER BY updated_at DESC LIMIT ` + strconv.Itoa(limit)

	var out []job.Job

	err := r.observe("jobs.list", func() error {
		rows, err := r.pool.Query(ctx, sql, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]job.Job, 0, limit)

		for rows.Next() {
			j, err := scanJob(rows)

			if err != nil {
				return err
			}

			out = append(out, j)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// Retry requeues a failed job immediately with a fresh attempt budget.
func (r *JobsRepo) Retry(ctx context.Context, id string) error {
	return r.observe("jobs.retry", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE jobs
			 SET status = $1, attempts = 0, run_at = $2, locked_at = NULL, locked_by = NULL, last_error = NULL, updated_at = $2
			 WHERE id = $3 AND status = $4`,
			job.StatusPending, time.Now().UTC(), id, job.StatusFailed,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			var status string

			err = r.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)

			if errors.Is(err, pgx.ErrNoRows) {
				return job.ErrJobNotFound
			}

			if err != nil {
				return err
			}

			return ErrJobNotFailed
		}

		return nil
	})
}
