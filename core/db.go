package core

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx, so repositories can run
	// the same queries inside or outside a transaction.
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
		QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
		QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
		BindNamed(query string, arg interface{}) (string, []interface{}, error)
		Rebind(query string) string
		DriverName() string
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

var (
	_ DB           = (*sqlx.DB)(nil)
	_ DBTransactor = (*sqlx.Tx)(nil)
)

// RunInTx runs fn inside a transaction, committing if it returns nil and rolling back otherwise.
func RunInTx(ctx context.Context, db DB, fn func(tx DBExecutor) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
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
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()
	return fn(tx)
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
