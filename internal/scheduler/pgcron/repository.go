package pgcron

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trustworks/essentials-scheduler/internal/pgerr"
	"github.com/trustworks/essentials-scheduler/internal/pgident"
)

// ErrNotFound names a lookup that finds no matching row. Repository
// methods do not return it: DoesJobExist reports a missing job as
// (0, false, nil).
var ErrNotFound = errors.New("pgcron: job not found")

// Repository is CRUD access over cron.job / cron.job_run_details.
type Repository interface {
	Schedule(ctx context.Context, job Job) (int64, error)
	Unschedule(ctx context.Context, jobID int64) error
	DoesJobExist(ctx context.Context, name string) (int64, bool, error)
	DeleteJobByNameEndingWithInstanceID(ctx context.Context, instanceID string) error
	FetchEntries(ctx context.Context, offset, limit int) ([]Entry, error)
	GetTotalEntries(ctx context.Context) (int64, error)
	FetchRunDetails(ctx context.Context, jobID int64, offset, limit int) ([]RunDetail, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository builds a Repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func buildFunctionCall(job Job) (string, error) {
	if !pgident.IsValidFunctionName(job.FunctionName) {
		return "", fmt.Errorf("%w: function name %q is not a valid or is a reserved identifier", pgident.ErrInvalidIdentifier, job.FunctionName)
	}
	if len(job.Args) == 0 {
		return fmt.Sprintf("SELECT %s()", job.FunctionName), nil
	}
	return fmt.Sprintf("SELECT %s(%s)", job.FunctionName, strings.Join(job.Args, ", ")), nil
}

// Schedule installs job via cron.schedule and returns pg_cron's job id.
// Callers must classify the returned error with pgerr.IsExtensionNotLoaded
// before treating it as fatal.
func (r *postgresRepository) Schedule(ctx context.Context, job Job) (int64, error) {
	if err := ValidateExpression(job.CronExpression); err != nil {
		return 0, err
	}
	sqlCall, err := buildFunctionCall(job)
	if err != nil {
		return 0, err
	}

	var jobID int64
	err = r.pool.QueryRow(ctx, "select cron.schedule($1, $2, $3)", job.Name, job.CronExpression, sqlCall).Scan(&jobID)
	if err != nil {
		return 0, fmt.Errorf("schedule pg_cron job %q: %w", job.Name, err)
	}
	return jobID, nil
}

func (r *postgresRepository) Unschedule(ctx context.Context, jobID int64) error {
	_, err := r.pool.Exec(ctx, "select cron.unschedule($1)", jobID)
	if err != nil {
		return fmt.Errorf("unschedule pg_cron job %d: %w", jobID, err)
	}
	return nil
}

func (r *postgresRepository) DoesJobExist(ctx context.Context, name string) (int64, bool, error) {
	var jobID int64
	err := r.pool.QueryRow(ctx, "select jobid from cron.job where jobname = $1", name).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("check pg_cron job exists %q: %w", name, err)
	}
	return jobID, true, nil
}

func (r *postgresRepository) DeleteJobByNameEndingWithInstanceID(ctx context.Context, instanceID string) error {
	_, err := r.pool.Exec(ctx, "select cron.unschedule(jobid) from cron.job where jobname like '%' || $1", instanceID)
	if err != nil {
		return fmt.Errorf("purge pg_cron residue for instance %q: %w", instanceID, err)
	}
	return nil
}

func (r *postgresRepository) FetchEntries(ctx context.Context, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		select jobid, jobname, schedule, command, active
		from cron.job
		order by jobid
		offset $1 limit $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pg_cron entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.JobID, &e.JobName, &e.Schedule, &e.Command, &e.Active); err != nil {
			return nil, fmt.Errorf("scan pg_cron entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresRepository) GetTotalEntries(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, "select count(*) from cron.job").Scan(&total); err != nil {
		return 0, fmt.Errorf("count pg_cron entries: %w", err)
	}
	return total, nil
}

func (r *postgresRepository) FetchRunDetails(ctx context.Context, jobID int64, offset, limit int) ([]RunDetail, error) {
	rows, err := r.pool.Query(ctx, `
		select runid, jobid, status, start_time, end_time, coalesce(return_message, '')
		from cron.job_run_details
		where jobid = $1
		order by runid desc
		offset $2 limit $3`, jobID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pg_cron run details: %w", err)
	}
	defer rows.Close()

	var details []RunDetail
	for rows.Next() {
		var d RunDetail
		if err := rows.Scan(&d.RunID, &d.JobID, &d.Status, &d.StartTime, &d.EndTime, &d.ReturnMsg); err != nil {
			return nil, fmt.Errorf("scan pg_cron run detail: %w", err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ProbeAvailable reports whether pg_cron is loaded, by attempting a
// throwaway schedule+unschedule cycle. Any error is classified via pgerr;
// a not-loaded classification returns (false, nil) rather than an error,
// matching the "no exception from extension probing is fatal" rule.
func ProbeAvailable(ctx context.Context, repo Repository, probeJobName string) (bool, error) {
	jobID, err := repo.Schedule(ctx, Job{
		Name:           probeJobName,
		FunctionName:   "pg_sleep",
		Args:           []string{"0"},
		CronExpression: string(OneSecond),
	})
	if err != nil {
		if pgerr.IsExtensionNotLoaded(err) {
			return false, nil
		}
		return false, err
	}
	_ = repo.Unschedule(ctx, jobID)
	return true, nil
}
