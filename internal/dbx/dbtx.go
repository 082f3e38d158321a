// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// helpers to run functions inside a transaction, and Postgres error
// classification.
package dbx

import (
	"context"
	"database/sql"
	"errors"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface, and so does gorm's ConnPool.
type DBTX interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the unit of work executed by a Transactor.
type TxFunc func(ctx context.Context, tx DBTX) error

// Transactor runs a unit of work atomically. Services depend on it instead of
// *sql.DB so the same code path can run against in-memory repositories.
type Transactor interface {
	WithinTx(ctx context.Context, fn TxFunc) error
	// Conn returns the non-transactional handle for single statements.
	Conn() DBTX
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    // use tx instead of db
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return Wrap("begin tx", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// Savepoint runs fn under the named savepoint when db is a *sql.Tx and rolls
// back to it if fn fails, so the transaction stays usable for a retry.
// Postgres aborts the whole transaction after any failed statement
// otherwise. Outside a transaction fn simply runs.
func Savepoint(ctx context.Context, db DBTX, name string, fn func() error) error {
	tx, ok := db.(*sql.Tx)
	if !ok {
		return fn()
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return Wrap("savepoint", err)
	}
	if err := fn(); err != nil {
		if _, rerr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rerr != nil {
			return errors.Join(err, Wrap("rollback to savepoint", rerr))
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return Wrap("release savepoint", err)
	}
	return nil
}

// SQLTransactor is a Transactor over a *sql.DB.
type SQLTransactor struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewSQLTransactor wraps db. opts may be nil for driver defaults
// (READ COMMITTED on Postgres).
func NewSQLTransactor(db *sql.DB, opts *sql.TxOptions) *SQLTransactor {
	return &SQLTransactor{db: db, opts: opts}
}

func (t *SQLTransactor) WithinTx(ctx context.Context, fn TxFunc) error {
	return WithTx(ctx, t.db, t.opts, fn)
}

func (t *SQLTransactor) Conn() DBTX {
	return t.db
}

// NopTransactor runs fn directly with a nil handle. It is meant for
// repositories that ignore DBTX (in-memory) and provides no rollback.
type NopTransactor struct{}

func (NopTransactor) WithinTx(ctx context.Context, fn TxFunc) error {
	return fn(ctx, nil)
}

func (NopTransactor) Conn() DBTX {
	return nil
}
