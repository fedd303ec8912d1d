package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/swiftloan/api/internal/domain/loan"
	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/observability"
)

type LoansRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewLoansRepo(pool *pgxpool.Pool, prom *observability.Prom) *LoansRepo {
	return &LoansRepo{pool: pool, prom: prom}
}

func (r *LoansRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const loanColumns = `id, user_id, amount, reason, documents, status, withdrawn, repaid_amount, repaid_at, created_at, updated_at`

func scanLoan(row pgx.Row) (loan.Loan, error) {
	var l loan.Loan

	err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.Amount,
		&l.Reason,
		&l.Documents,
		&l.Status,
		&l.Withdrawn,
		&l.RepaidAmount,
		&l.RepaidAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return loan.Loan{}, loan.ErrNotFound
		}

		return loan.Loan{}, err
	}

	return l, nil
}

func (r *LoansRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *LoansRepo) Create(ctx context.Context, userID string, req loan.CreateLoanRequest) (loan.Loan, error) {
	l := loan.NewFromCreateRequest(userID, req)

	err := r.observe("loans.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO loans (id, user_id, amount, reason, documents, status, withdrawn, repaid_amount, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			l.ID, l.UserID, l.Amount, l.Reason, l.Documents, l.Status, l.Withdrawn, l.RepaidAmount, l.CreatedAt, l.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return loan.Loan{}, err
	}

	return l, nil
}

// ListByOwner returns the caller's loans, newest first.
func (r *LoansRepo) ListByOwner(ctx context.Context, userID string) ([]loan.Loan, error) {
	var out []loan.Loan

	err := r.observe("loans.list_by_owner", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+loanColumns+` FROM loans WHERE user_id = $1 ORDER BY created_at DESC`,
			userID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]loan.Loan, 0)

		for rows.Next() {
			l, err := scanLoan(rows)

			if err != nil {
				return err
			}

			out = append(out, l)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// Repay moves an approved loan owned by userID to repaid, stamping
// repaid_at and mirroring the amount into repaid_amount. The status
// check rides in the UPDATE itself so concurrent calls settle on the
// row's atomicity.
func (r *LoansRepo) Repay(ctx context.Context, id, userID string) (loan.Loan, error) {
	now := time.Now().UTC()

	var l loan.Loan
	var err error

	err = r.observe("loans.repay", func() error {
		l, err = scanLoan(r.pool.QueryRow(ctx,
			`UPDATE loans
			 SET status = $1, repaid_at = $2, repaid_amount = amount, updated_at = $2
			 WHERE id = $3 AND user_id = $4 AND status = $5
			 RETURNING `+loanColumns,
			loan.StatusRepaid, now, id, userID, loan.StatusApproved,
		))
		return err
	})

	if errors.Is(err, loan.ErrNotFound) {
		return loan.Loan{}, r.explainMissedUpdate(ctx, id, userID)
	}

	return l, err
}

// Withdraw moves a pending loan owned by userID to withdrawn, keeping
// the legacy boolean in line with the status.
func (r *LoansRepo) Withdraw(ctx context.Context, id, userID string) (loan.Loan, error) {
	now := time.Now().UTC()

	var l loan.Loan
	var err error

	err = r.observe("loans.withdraw", func() error {
		l, err = scanLoan(r.pool.QueryRow(ctx,
			`UPDATE loans
			 SET status = $1, withdrawn = TRUE, updated_at = $2
			 WHERE id = $3 AND user_id = $4 AND status = $5
			 RETURNING `+loanColumns,
			loan.StatusWithdrawn, now, id, userID, loan.StatusPending,
		))
		return err
	})

	if errors.Is(err, loan.ErrNotFound) {
		return loan.Loan{}, r.explainMissedUpdate(ctx, id, userID)
	}

	return l, err
}

// explainMissedUpdate distinguishes "no such loan for this owner" (404,
// no existence leakage) from "wrong source state" (invalid transition).
func (r *LoansRepo) explainMissedUpdate(ctx context.Context, id, userID string) error {
	var status string

	err := r.pool.QueryRow(ctx,
		`SELECT status FROM loans WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&status)

	if errors.Is(err, pgx.ErrNoRows) {
		return loan.ErrNotFound
	}

	if err != nil {
		return err
	}

	return loan.ErrInvalidTransition
}

// DecideTx applies an admin approve/reject inside tx, requiring the
// loan to still be pending.
func (r *LoansRepo) DecideTx(ctx context.Context, tx pgx.Tx, id string, status loan.Status) (loan.Loan, error) {
	if !status.IsDecision() {
		return loan.Loan{}, loan.ErrInvalidStatus
	}

	l, err := scanLoan(tx.QueryRow(ctx,
		`UPDATE loans
		 SET status = $1, updated_at = $2
		 WHERE id = $3 AND status = $4
		 RETURNING `+loanColumns,
		status, time.Now().UTC(), id, loan.StatusPending,
	))

	if errors.Is(err, loan.ErrNotFound) {
		var current string

		err = tx.QueryRow(ctx, `SELECT status FROM loans WHERE id = $1`, id).Scan(&current)

		if errors.Is(err, pgx.ErrNoRows) {
			return loan.Loan{}, loan.ErrNotFound
		}

		if err != nil {
			return loan.Loan{}, err
		}

		return loan.Loan{}, loan.ErrInvalidTransition
	}

	return l, err
}

// GetWithApplicant loads one loan with the applicant summary for admin
// review screens.
func (r *LoansRepo) GetWithApplicant(ctx context.Context, id string) (loan.Loan, error) {
	var l loan.Loan

	err := r.observe("loans.get_with_applicant", func() error {
		var a user.Summary

		err := r.pool.QueryRow(ctx,
			`SELECT l.id, l.user_id, l.amount, l.reason, l.documents, l.status, l.withdrawn,
			        l.repaid_amount, l.repaid_at, l.created_at, l.updated_at,
			        u.id, u.name, u.email
			 FROM loans l
			 JOIN users u ON u.id = l.user_id
			 WHERE l.id = $1`,
			id,
		).Scan(
			&l.ID, &l.UserID, &l.Amount, &l.Reason, &l.Documents, &l.Status, &l.Withdrawn,
			&l.RepaidAmount, &l.RepaidAt, &l.CreatedAt, &l.UpdatedAt,
			&a.ID, &a.Name, &a.Email,
		)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return loan.ErrNotFound
			}
			return err
		}

		l.Applicant = &a
		return nil
	})

	if err != nil {
		return loan.Loan{}, err
	}

	return l, nil
}

// ListWithApplicants is the admin review queue: all loans joined with
// applicant name/email, optional status filter and name/email search.
func (r *LoansRepo) ListWithApplicants(ctx context.Context, status loan.Status, query string) ([]loan.Loan, error) {
	base := `SELECT l.id, l.user_id, l.amount, l.reason, l.documents, l.status, l.withdrawn,
	                l.repaid_amount, l.repaid_at, l.created_at, l.updated_at,
	                u.id, u.name, u.email
	         FROM loans l
	         JOIN users u ON u.id = l.user_id`

	var conds []string
	var args []interface{}
	pos := 1

	if status != "" {
		conds = append(conds, fmt.Sprintf("l.status = $%d", pos))
		args = append(args, status)
		pos++
	}

	if query != "" {
		conds = append(conds, fmt.Sprintf("(u.name ILIKE $%d OR u.email ILIKE $%d)", pos, pos))
		args = append(args, "%"+query+"%")
		pos++
	}

	sql := base

	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}

	sql += " ORDER BY l.created_at DESC"

	var out []loan.Loan

	err := r.observe("loans.list_with_applicants", func() error {
		rows, err := r.pool.Query(ctx, sql, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]loan.Loan, 0)

		for rows.Next() {
			var l loan.Loan
			var a user.Summary

			err = rows.Scan(
				&l.ID, &l.UserID, &l.Amount, &l.Reason, &l.Documents, &l.Status, &l.Withdrawn,
				&l.RepaidAmount, &l.RepaidAt, &l.CreatedAt, &l.UpdatedAt,
				&a.ID, &a.Name, &a.Email,
			)

			if err != nil {
				return err
			}

			l.Applicant = &a
			out = append(out, l)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
