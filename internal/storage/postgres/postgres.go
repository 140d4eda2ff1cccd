// Package postgres implements the storage contracts on PostgreSQL through
// database/sql. It works with either the pgx stdlib driver or lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/NogaLive/SNIUGB/internal/storage"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB runs units of work against a PostgreSQL database.
type DB struct {
	db      *sql.DB
	timeout time.Duration
}

// Option configures a DB.
type Option func(*DB)

// WithTimeout overrides storage.DefaultTxTimeout.
func WithTimeout(d time.Duration) Option {
	return func(db *DB) {
		db.timeout = d
	}
}

func New(db *sql.DB, opts ...Option) *DB {
	d := &DB{db: db}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunInTx opens a read-committed transaction, hands fn the stores bound to
// it, and commits only if fn returns nil.
func (d *DB) RunInTx(ctx context.Context, fn func(stores storage.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := d.timeout
	if timeout == 0 {
		timeout = storage.DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(bind(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func bind(q querier) storage.Stores {
	return storage.Stores{
		Animals:      &AnimalStore{q: q},
		Holdings:     &HoldingStore{q: q},
		References:   &ReferenceStore{q: q},
		HealthEvents: &HealthEventStore{q: q},
		Transfers:    &TransferStore{q: q},
	}
}

// Ping reports whether the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate applies the schema and loads the reference catalogs. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return d.Seed(ctx)
}

// Seed loads the default species, region and event-type catalogs.
func (d *DB) Seed(ctx context.Context) error {
	for _, sp := range storage.DefaultSpecies() {
		if _, err := d.db.ExecContext(ctx, `
			INSERT INTO species (id, name, digit) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, sp.ID, sp.Name, sp.Digit); err != nil {
			return fmt.Errorf("seed species: %w", err)
		}
	}
	for _, r := range storage.DefaultRegions() {
		if _, err := d.db.ExecContext(ctx, `
			INSERT INTO regions (id, name, code) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Name, r.Code); err != nil {
			return fmt.Errorf("seed regions: %w", err)
		}
	}
	for _, et := range storage.DefaultEventTypes() {
		if _, err := d.db.ExecContext(ctx, `
			INSERT INTO event_types (id, name, event_group, multi_animal) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, et.ID, et.Name, string(et.Group), et.MultiAnimal); err != nil {
			return fmt.Errorf("seed event types: %w", err)
		}
	}
	return nil
}

// isUniqueViolation recognizes duplicate-key errors from both drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
