package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/swiftloan/api/internal/domain/loan"
	"github.com/swiftloan/api/internal/domain/report"
	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/observability"
)

// StatsRepo serves the read-only aggregation queries behind both
// dashboards.
type StatsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewStatsRepo(pool *pgxpool.Pool, prom *observability.Prom) *StatsRepo {
	return &StatsRepo{pool: pool, prom: prom}
}

func (r *StatsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *StatsRepo) countRow(ctx context.Context, op, sql string, args ...interface{}) (int, error) {
	var n int

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, sql, args...).Scan(&n)
	})

	return n, err
}

// CountUsersBetween counts role=user accounts created in [from, to).
// Zero times drop the bound.
func (r *StatsRepo) CountUsersBetween(ctx context.Context, from, to time.Time) (int, error) {
	switch {
	case from.IsZero() && to.IsZero():
		return r.countRow(ctx, "stats.count_users",
			`SELECT COUNT(*) FROM users WHERE role = $1`, user.RoleUser)
	case to.IsZero():
		return r.countRow(ctx, "stats.count_users",
			`SELECT COUNT(*) FROM users WHERE role = $1 AND created_at >= $2`, user.RoleUser, from)
	default:
		return r.countRow(ctx, "stats.count_users",
			`SELECT COUNT(*) FROM users WHERE role = $1 AND created_at >= $2 AND created_at < $3`,
			user.RoleUser, from, to)
	}
}

// CountLoansByStatusBetween counts loans in a status created in [from, to).
func (r *StatsRepo) CountLoansByStatusBetween(ctx context.Context, status loan.Status, from, to time.Time) (int, error) {
	switch {
	case from.IsZero() && to.IsZero():
		return r.countRow(ctx, "stats.count_loans",
			`SELECT COUNT(*) FROM loans WHERE status = $1`, status)
	case to.IsZero():
		return r.countRow(ctx, "stats.count_loans",
			`SELECT COUNT(*) FROM loans WHERE status = $1 AND created_at >= $2`, status, from)
	default:
		return r.countRow(ctx, "stats.count_loans",
			`SELECT COUNT(*) FROM loans WHERE status = $1 AND created_at >= $2 AND created_at < $3`,
			status, from, to)
	}
}

func (r *StatsRepo) CountLoans(ctx context.Context) (int, error) {
	return r.countRow(ctx, "stats.count_loans", `SELECT COUNT(*) FROM loans`)
}

func (r *StatsRepo) CountDisbursedLoans(ctx context.Context) (int, error) {
	return r.countRow(ctx, "stats.count_disbursed",
		`SELECT COUNT(*) FROM loans WHERE status = $1 OR status = $2`,
		loan.StatusApproved, loan.StatusRepaid)
}

// SumDisbursedBetween totals approved+repaid loan amounts created in
// [from, to).
func (r *StatsRepo) SumDisbursedBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64

	base := `SELECT COALESCE(SUM(amount), 0) FROM loans WHERE status IN ($1, $2)`

	err := r.observe("stats.sum_disbursed", func() error {
		switch {
		case from.IsZero() && to.IsZero():
			return r.pool.QueryRow(ctx, base,
				loan.StatusApproved, loan.StatusRepaid).Scan(&total)
		case to.IsZero():
			return r.pool.QueryRow(ctx, base+` AND created_at >= $3`,
				loan.StatusApproved, loan.StatusRepaid, from).Scan(&total)
		default:
			return r.pool.QueryRow(ctx, base+` AND created_at >= $3 AND created_at < $4`,
				loan.StatusApproved, loan.StatusRepaid, from, to).Scan(&total)
		}
	})

	return total, err
}

// RecentLoanActivities maps the latest loans into feed entries.
func (r *StatsRepo) RecentLoanActivities(ctx context.Context, limit int) ([]report.Activity, error) {
	var out []report.Activity

	err := r.observe("stats.recent_loans", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT l.status, l.amount, l.created_at, l.updated_at, u.name
			 FROM loans l
			 JOIN users u ON u.id = l.user_id
			 ORDER BY l.created_at DESC
			 LIMIT $1`,
			limit,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]report.Activity, 0, limit)

		for rows.Next() {
			var status loan.Status
			var amount float64
			var createdAt, updatedAt time.Time
			var name string

			if err := rows.Scan(&status, &amount, &createdAt, &updatedAt, &name); err != nil {
				return err
			}

			a := report.Activity{User: name, Amount: &amount, At: createdAt}

			switch status {
			case loan.StatusApproved:
				a.Kind = report.ActivityLoanApproved
				a.At = updatedAt
			case loan.StatusRejected:
				a.Kind = report.ActivityLoanRejected
				a.At = updatedAt
			case loan.StatusRepaid:
				a.Kind = report.ActivityLoanRepaid
				a.At = updatedAt
			default:
				a.Kind = report.ActivityLoanPending
			}

			out = append(out, a)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// RecentUserActivities maps the latest borrower signups into feed entries.
func (r *StatsRepo) RecentUserActivities(ctx context.Context, limit int) ([]report.Activity, error) {
	var out []report.Activity

	err := r.observe("stats.recent_users", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT name, created_at FROM users WHERE role = $1 ORDER BY created_at DESC LIMIT $2`,
			user.RoleUser, limit,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]report.Activity, 0, limit)

		for rows.Next() {
			var name string
			var createdAt time.Time

			if err := rows.Scan(&name, &createdAt); err != nil {
				return err
			}

			out = append(out, report.Activity{
				Kind: report.ActivityNewUser,
				User: name,
				At:   createdAt,
			})
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// RecentTicketActivities maps the latest support tickets into feed entries.
func (r *StatsRepo) RecentTicketActivities(ctx context.Context, limit int) ([]report.Activity, error) {
	var out []report.Activity

	err := r.observe("stats.recent_tickets", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT u.name, t.created_at
			 FROM support_tickets t
			 JOIN users u ON u.id = t.user_id
			 ORDER BY t.created_at DESC
			 LIMIT $1`,
			limit,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]report.Activity, 0, limit)

		for rows.Next() {
			var name string
			var createdAt time.Time

			if err := rows.Scan(&name, &createdAt); err != nil {
				return err
			}

			out = append(out, report.Activity{
				Kind: report.ActivitySupportTicket,
				User: name,
				At:   createdAt,
			})
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
