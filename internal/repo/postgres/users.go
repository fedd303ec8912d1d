package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/observability"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			email,
		))
		return err
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		))
		return err
	})

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, ErrEmailAlreadyUsed
		}

		return user.User{}, err
	}

	return u, nil
}

// Update persists a profile change. Zero-value fields are left alone.
func (r *UsersRepo) Update(ctx context.Context, id string, name, email, passwordHash string) (user.User, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{}
	pos := 1

	if name != "" {
		sets = append(sets, fmt.Sprintf("name = $%d", pos))
		args = append(args, name)
		pos++
	}
	if email != "" {
		sets = append(sets, fmt.Sprintf("email = $%d", pos))
		args = append(args, email)
		pos++
	}
	if passwordHash != "" {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", pos))
		args = append(args, passwordHash)
		pos++
	}

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING `+userColumns,
		strings.Join(sets, ", "), pos,
	)
	args = append(args, id)

	var u user.User
	var err error

	err = r.observe("users.update", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, query, args...))
		return err
	})

	if err != nil && IsUniqueViolation(err) {
		return user.User{}, ErrEmailAlreadyUsed
	}

	return u, err
}

// List returns users newest first, optionally filtered by role and a
// case-insensitive name/email substring match.
func (r *UsersRepo) List(ctx context.Context, query, role string) ([]user.User, error) {
	var conds []string
	var args []interface{}
	pos := 1

	if query != "" {
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", pos, pos))
		args = append(args, "%"+query+"%")
		pos++
	}

	if role != "" {
		conds = append(conds, fmt.Sprintf("role = $%d", pos))
		args = append(args, role)
		pos++
	}

	sql := `SELECT ` + userColumns + ` FROM users`

	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}

	sql += " ORDER BY created_at DESC"

	var out []user.User

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, sql, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]user.User, 0)

		for rows.Next() {
			u, err := scanUser(rows)

			if err != nil {
				return err
			}

			out = append(out, u)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
