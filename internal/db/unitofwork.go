package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UnitOfWork exposes the transaction handle available to a function run
// inside UsingUnitOfWork.
type UnitOfWork interface {
	Tx() pgx.Tx
}

// UnitOfWorkFactory runs fn inside a single transaction, committing on a
// nil return and rolling back otherwise. The TTL manager uses it to
// create its delete function and to run each in-process TTL DELETE. The
// scheduler does not use it: its pg_cron and executor-job repositories
// write through the pool directly, one statement at a time, so job
// install/purge steps are not grouped into a single transaction.
type UnitOfWorkFactory interface {
	UsingUnitOfWork(ctx context.Context, fn func(UnitOfWork) error) error
}

type poolUnitOfWorkFactory struct {
	pool *pgxpool.Pool
}

// NewUnitOfWorkFactory adapts a pgxpool.Pool into a UnitOfWorkFactory.
func NewUnitOfWorkFactory(pool *pgxpool.Pool) UnitOfWorkFactory {
	return &poolUnitOfWorkFactory{pool: pool}
}

type poolUnitOfWork struct {
	tx pgx.Tx
}

func (u *poolUnitOfWork) Tx() pgx.Tx { return u.tx }

func (f *poolUnitOfWorkFactory) UsingUnitOfWork(ctx context.Context, fn func(UnitOfWork) error) error {
	tx, err := f.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&poolUnitOfWork{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("unit of work failed (%w), rollback also failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
