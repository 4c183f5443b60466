// Package dbx wraps the shared *sql.DB connection pool and exposes a
// UnitOfWork so every multi-row write described in §5 runs inside one
// database transaction, audit log included. It opens the DatabaseURL
// from config and hands out transactional units of work to callers.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Pool is a thin wrapper around *sql.DB with the connection limits §5
// calls for ("max ~10 concurrent connections, shared process-wide").
type Pool struct {
	DB *sql.DB
}

// Open connects to the relational store named by DATABASE_URL (§6).
func Open(databaseURL string) (*Pool, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("dbx: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Pool{DB: db}, nil
}

func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.DB.PingContext(ctx)
}

func (p *Pool) Close() error {
	return p.DB.Close()
}

// Tx is the narrow interface both *sql.Tx and *sql.DB satisfy, so
// repository methods can run either standalone or inside a UnitOfWork.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	_ Tx = (*sql.DB)(nil)
	_ Tx = (*sql.Tx)(nil)
)

// UnitOfWork is the interface service packages depend on instead of *Pool
// directly, so tests can supply a fake that runs fn against an in-memory
// double instead of a real database.
type UnitOfWork interface {
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
}

var _ UnitOfWork = (*Pool)(nil)

// WithTransaction runs fn inside a single database transaction, committing
// on success and rolling back on any error or panic — the "all succeed or
// none" guarantee §4.1/§5 require across reading write, nozzle-cache
// update, tank decrement, and audit-log emission.
func (p *Pool) WithTransaction(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbx: begin: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("dbx: commit: %w", err)
	}
	return nil
}
