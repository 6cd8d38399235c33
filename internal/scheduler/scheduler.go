package scheduler

import (
	"context"
	"log/slog"

	"github.com/trustworks/essentials-scheduler/internal/scheduler/executorjob"
	"github.com/trustworks/essentials-scheduler/internal/scheduler/pgcron"
)

// Scheduler is the Lifecycle object described by spec §4.E: jobs may be
// registered before Start (queued) or after (installed immediately if
// this instance is leader).
type Scheduler interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsStarted() bool
	IsLeader() bool
	IsPgCronAvailable() bool

	// SchedulePgCronJob registers a raw pg_cron job. Duplicate names
	// return ErrAlreadyRegistered.
	SchedulePgCronJob(job pgcron.Job) error

	// ScheduleExecutorJob registers a raw in-process fixed-delay job.
	// Duplicate names return ErrAlreadyRegistered.
	ScheduleExecutorJob(job ExecutorJob) error

	// Schedule registers name under cfg, picking pg_cron or in-process
	// scheduling per the rules in spec §4.E "Selecting a scheduling
	// mode". target is only consulted when cfg resolves to pg_cron.
	Schedule(name string, cfg ScheduleConfiguration, target CronTarget, task func(ctx context.Context) error) error

	FetchPgCronEntries(ctx context.Context, offset, limit int) ([]pgcron.Entry, error)
	GetTotalPgCronEntries(ctx context.Context) (int64, error)
	FetchPgCronJobRunDetails(ctx context.Context, jobID int64, offset, limit int) ([]pgcron.RunDetail, error)
	FetchExecutorJobEntries(ctx context.Context, offset, limit int) ([]executorjob.Entry, error)
	GetTotalExecutorJobEntries(ctx context.Context) (int64, error)
}

// Config wires a DefaultScheduler's collaborators.
type Config struct {
	LockName    string
	InstanceID  string // if empty, resolved from instanceid.Resolve() at Start
	PgCronRepo  pgcron.Repository
	ExecRepo    executorjob.Repository
	LockManager LockManager
	Logger      *slog.Logger
	Metrics     MetricsSink
	ProbeJobPrefix string // defaults to "probe"
}

// LockManager is the subset of fencedlock.Manager the scheduler consumes.
// Declared locally so this package doesn't import fencedlock directly —
// any implementation of the interface works, including a fake in tests.
type LockManager interface {
	AcquireLockAsync(lockName string, callbacks Callbacks)
	CancelAsyncLockAcquiring(lockName string)
}

// Callbacks mirrors fencedlock.Callbacks; duplicated here so this package
// has no compile-time dependency on the fencedlock package, only on the
// shape it needs.
type Callbacks struct {
	OnAcquired func(lockName string)
	OnReleased func(lockName string)
}

// MetricsSink is the subset of telemetry.Metrics the scheduler updates.
type MetricsSink interface {
	JobInstalled(kind string)
	JobInstallFailed(kind string)
	LeadershipChanged(lockName string, held bool)
}
