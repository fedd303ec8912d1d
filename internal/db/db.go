package db

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)

	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 5

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)

	if err != nil {
		return nil, err
	}

	err = pool.Ping(ctx)

	if err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// Handle owns the process-wide connection pool and guards first
// connection with once semantics, so concurrent first requests cannot
// race the setup.
type Handle struct {
	dbURL string

	once sync.Once
	pool *pgxpool.Pool
	err  error
}

func NewHandle(dbURL string) *Handle {
	return &Handle{dbURL: dbURL}
}

// Acquire returns the shared pool, connecting on first use.
func (h *Handle) Acquire() (*pgxpool.Pool, error) {
	h.once.Do(func() {
		h.pool, h.err = NewPool(h.dbURL)
	})

	return h.pool, h.err
}

func (h *Handle) Close() {
	if h.pool != nil {
		h.pool.Close()
	}
}
