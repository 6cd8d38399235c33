package executorjob

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound names a lookup that finds no matching row. Repository
// methods do not return it: ExistsByName reports a missing entry as
// (false, nil).
var ErrNotFound = errors.New("executorjob: entry not found")

// Repository is CRUD over the executor_scheduled_job audit table. It is
// written only by the current leader; readers on other nodes may observe
// stale rows but never a row for a job not owned by the observed
// leader's instance-id (the leader purges its own rows on every start
// and lock-release before installing anything new).
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	ExistsByName(ctx context.Context, name string) (bool, error)
	DeleteByName(ctx context.Context, name string) error
	DeleteByNameEndingWithInstanceID(ctx context.Context, instanceID string) error
	DeleteAll(ctx context.Context) error
	FetchEntries(ctx context.Context, offset, limit int) ([]Entry, error)
	GetTotalEntries(ctx context.Context) (int64, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository builds a Repository backed by pool. Callers are
// expected to have created the executor_scheduled_job table with columns
// matching Entry; this package does not run migrations.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Insert(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx, `
		insert into executor_scheduled_job (name, host, last_started_at, next_fire_at)
		values ($1, $2, $3, $4)
		on conflict (name) do update set host = excluded.host, next_fire_at = excluded.next_fire_at`,
		entry.Name, entry.Host, entry.LastStartedAt, entry.NextFireAt)
	if err != nil {
		return fmt.Errorf("insert executor job entry %q: %w", entry.Name, err)
	}
	return nil
}

func (r *postgresRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "select exists(select 1 from executor_scheduled_job where name = $1)", name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check executor job exists %q: %w", name, err)
	}
	return exists, nil
}

func (r *postgresRepository) DeleteByName(ctx context.Context, name string) error {
	_, err := r.pool.Exec(ctx, "delete from executor_scheduled_job where name = $1", name)
	if err != nil {
		return fmt.Errorf("delete executor job %q: %w", name, err)
	}
	return nil
}

func (r *postgresRepository) DeleteByNameEndingWithInstanceID(ctx context.Context, instanceID string) error {
	_, err := r.pool.Exec(ctx, "delete from executor_scheduled_job where name like '%' || $1", instanceID)
	if err != nil {
		return fmt.Errorf("purge executor job residue for instance %q: %w", instanceID, err)
	}
	return nil
}

func (r *postgresRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "delete from executor_scheduled_job"); err != nil {
		return fmt.Errorf("delete all executor job entries: %w", err)
	}
	return nil
}

func (r *postgresRepository) FetchEntries(ctx context.Context, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		select name, host, last_started_at, next_fire_at
		from executor_scheduled_job
		order by name
		offset $1 limit $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch executor job entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Host, &e.LastStartedAt, &e.NextFireAt); err != nil {
			return nil, fmt.Errorf("scan executor job entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresRepository) GetTotalEntries(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, "select count(*) from executor_scheduled_job").Scan(&total); err != nil {
		return 0, fmt.Errorf("count executor job entries: %w", err)
	}
	return total, nil
}
