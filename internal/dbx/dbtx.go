// Package dbx carries the small database plumbing shared by repositories:
// DBTX, the query interface satisfied by both *sql.DB and *sql.Tx, and a
// transaction wrapper. Repositories are written against DBTX so the same
// code runs standalone or inside a transaction (password changes re-verify
// and rewrite the credential record atomically through this).
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql the credential repositories need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with the transactional handle, and
// commits on success or rolls back on error. Panics roll back and are
// rethrown.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
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
