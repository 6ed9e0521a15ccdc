// Package pgxutil runs job store transactions over the pgx stdlib bridge.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Beginner is satisfied by *sql.DB, *sql.Conn and *sqlx.DB.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// InTx runs fn in a database/sql transaction and commits only when fn returns nil.
func InTx(ctx context.Context, b Beginner, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := b.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	return settle(tx, func() error { return fn(tx) })
}

// InPgxTx runs fn in a native pgx transaction on a connection borrowed from db, for work
// that needs pgx-only APIs such as CollectRows.
func InPgxTx(ctx context.Context, db *sql.DB, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("borrow conn: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("driver conn is %T, not *stdlib.Conn", dc)
		}
		tx, err := std.Conn().BeginTx(ctx, opts)
		if err != nil {
			return fmt.Errorf("begin pgx tx: %w", err)
		}
		return settle(pgxSettler{ctx: ctx, tx: tx}, func() error { return fn(tx) })
	})
}

type settler interface {
	Commit() error
	Rollback() error
}

// settle commits after a successful body and rolls back otherwise. Rollback after a
// commit is a no-op; its "already done" error is ignored.
func settle(tx settler, body func() error) (err error) {
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !finished(rerr) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
	}()
	if err = body(); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func finished(err error) bool {
	return errors.Is(err, sql.ErrTxDone) || errors.Is(err, pgx.ErrTxClosed)
}

type pgxSettler struct {
	ctx context.Context
	tx  pgx.Tx
}

func (s pgxSettler) Commit() error   { return s.tx.Commit(s.ctx) }
func (s pgxSettler) Rollback() error { return s.tx.Rollback(s.ctx) }
