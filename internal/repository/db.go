package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type scanner interface {
	Scan(dest ...any) error
}

type DB struct {
	pool *sql.DB
}

func NewDB(pool *sql.DB) *DB {
	return &DB{pool: pool}
}

func (d *DB) Conn() *sql.DB {
	return d.pool
}

// Ping reports whether the journal database is reachable. A DB without a
// pool (in-memory deployment) is always ready.
func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.pool == nil {
		return nil
	}
	if err := d.pool.PingContext(ctx); err != nil {
		return fmt.Errorf("Ping: %w", err)
	}
	return nil
}
