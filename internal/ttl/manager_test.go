package ttl

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trustworks/essentials-scheduler/internal/db"
	"github.com/trustworks/essentials-scheduler/internal/scheduler"
	"github.com/trustworks/essentials-scheduler/internal/scheduler/executorjob"
	"github.com/trustworks/essentials-scheduler/internal/scheduler/pgcron"
)

// fakeScheduler records Schedule calls without touching pg_cron or
// executor tables.
type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[string]scheduler.ScheduleConfiguration
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[string]scheduler.ScheduleConfiguration)}
}

func (f *fakeScheduler) Start(ctx context.Context) error { return nil }
func (f *fakeScheduler) Stop(ctx context.Context) error  { return nil }
func (f *fakeScheduler) IsStarted() bool                 { return true }
func (f *fakeScheduler) IsLeader() bool                  { return true }
func (f *fakeScheduler) IsPgCronAvailable() bool         { return true }
func (f *fakeScheduler) SchedulePgCronJob(job pgcron.Job) error { return nil }
func (f *fakeScheduler) ScheduleExecutorJob(job scheduler.ExecutorJob) error { return nil }

func (f *fakeScheduler) Schedule(name string, cfg scheduler.ScheduleConfiguration, target scheduler.CronTarget, task func(context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[name] = cfg
	return nil
}

func (f *fakeScheduler) FetchPgCronEntries(ctx context.Context, offset, limit int) ([]pgcron.Entry, error) {
	return nil, nil
}
func (f *fakeScheduler) GetTotalPgCronEntries(ctx context.Context) (int64, error) { return 0, nil }
func (f *fakeScheduler) FetchPgCronJobRunDetails(ctx context.Context, jobID int64, offset, limit int) ([]pgcron.RunDetail, error) {
	return nil, nil
}
func (f *fakeScheduler) FetchExecutorJobEntries(ctx context.Context, offset, limit int) ([]executorjob.Entry, error) {
	return nil, nil
}
func (f *fakeScheduler) GetTotalExecutorJobEntries(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeScheduler) scheduledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}

// fakeUnitOfWorkFactory counts how many times a DDL/DML block ran
// without needing a real connection.
type fakeUnitOfWorkFactory struct {
	calls int
}

func (f *fakeUnitOfWorkFactory) UsingUnitOfWork(ctx context.Context, fn func(db.UnitOfWork) error) error {
	f.calls++
	return fn(fakeUnitOfWork{})
}

// fakeUnitOfWork hands out a fakeTx whose Exec succeeds without a
// connection; every other pgx.Tx method is left unimplemented.
type fakeUnitOfWork struct{}

func (fakeUnitOfWork) Tx() pgx.Tx { return fakeTx{} }

type fakeTx struct{ pgx.Tx }

func (fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

var _ scheduler.Scheduler = (*fakeScheduler)(nil)

func TestManager_ScheduleBeforeStartIsQueuedThenInstalledOnStart(t *testing.T) {
	sched := newFakeScheduler()
	uow := &fakeUnitOfWorkFactory{}
	mgr, err := New(Config{Scheduler: sched, UnitOfWork: uow})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	action, err := NewDefaultAction("events", "created_at < now() - interval '1 hour'", DefaultTTLFunctionName)
	if err != nil {
		t.Fatalf("NewDefaultAction: %v", err)
	}

	if err := mgr.ScheduleTTLJob(Definition{
		Action:                action,
		ScheduleConfiguration: scheduler.CronConfiguration{CronExpression: "*/1 * * * *"},
	}); err != nil {
		t.Fatalf("ScheduleTTLJob: %v", err)
	}

	if sched.scheduledCount() != 0 {
		t.Fatal("expected job not yet scheduled before Start")
	}

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if sched.scheduledCount() != 1 {
		t.Fatalf("expected 1 job scheduled after Start, got %d", sched.scheduledCount())
	}
	if uow.calls != 1 {
		t.Fatalf("expected TTL function installed exactly once, got %d calls", uow.calls)
	}
}

func TestManager_ScheduleAfterStartInstallsImmediately(t *testing.T) {
	sched := newFakeScheduler()
	uow := &fakeUnitOfWorkFactory{}
	mgr, err := New(Config{Scheduler: sched, UnitOfWork: uow})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	action, err := NewDefaultAction("sessions", "expires_at < now()", DefaultTTLFunctionName)
	if err != nil {
		t.Fatalf("NewDefaultAction: %v", err)
	}
	if err := mgr.ScheduleTTLJob(Definition{
		Action:                action,
		ScheduleConfiguration: scheduler.CronConfiguration{CronExpression: "*/1 * * * *"},
	}); err != nil {
		t.Fatalf("ScheduleTTLJob: %v", err)
	}

	if sched.scheduledCount() != 1 {
		t.Fatalf("expected job installed immediately, got %d", sched.scheduledCount())
	}
}

func TestManager_DuplicateJobNameRejected(t *testing.T) {
	sched := newFakeScheduler()
	uow := &fakeUnitOfWorkFactory{}
	mgr, err := New(Config{Scheduler: sched, UnitOfWork: uow})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	action, _ := NewDefaultAction("events", "1=1", DefaultTTLFunctionName)
	def := Definition{Action: action, ScheduleConfiguration: scheduler.CronConfiguration{CronExpression: "*/1 * * * *"}}

	if err := mgr.ScheduleTTLJob(def); err != nil {
		t.Fatalf("first ScheduleTTLJob: %v", err)
	}
	if err := mgr.ScheduleTTLJob(def); err == nil {
		t.Fatal("expected duplicate job name to be rejected")
	}
}

func TestNewDefaultAction_RejectsInvalidTableName(t *testing.T) {
	if _, err := NewDefaultAction("select", "1=1", DefaultTTLFunctionName); err == nil {
		t.Fatal("expected reserved keyword table name to be rejected")
	}
}
