package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trustworks/essentials-scheduler/internal/pgerr"
	"github.com/trustworks/essentials-scheduler/internal/scheduler/executorjob"
	"github.com/trustworks/essentials-scheduler/internal/scheduler/pgcron"
)

// fakeLockManager is a synchronous, single-contender stand-in for
// fencedlock.Manager: AcquireLockAsync grants the lock immediately and
// synchronously, and CancelAsyncLockAcquiring releases it immediately.
// This mirrors the teacher's own preference for hand-written fakes over
// a mocking library.
type fakeLockManager struct {
	mu        sync.Mutex
	callbacks map[string]Callbacks
	held      map[string]bool
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{
		callbacks: make(map[string]Callbacks),
		held:      make(map[string]bool),
	}
}

func (f *fakeLockManager) AcquireLockAsync(lockName string, callbacks Callbacks) {
	f.mu.Lock()
	f.callbacks[lockName] = callbacks
	f.held[lockName] = true
	f.mu.Unlock()
	callbacks.OnAcquired(lockName)
}

func (f *fakeLockManager) CancelAsyncLockAcquiring(lockName string) {
	f.mu.Lock()
	cb, ok := f.callbacks[lockName]
	held := f.held[lockName]
	f.held[lockName] = false
	f.mu.Unlock()
	if ok && held {
		cb.OnReleased(lockName)
	}
}

func (f *fakeLockManager) forceRelease(lockName string) {
	f.mu.Lock()
	cb, ok := f.callbacks[lockName]
	f.held[lockName] = false
	f.mu.Unlock()
	if ok {
		cb.OnReleased(lockName)
	}
}

func (f *fakeLockManager) forceReacquire(lockName string) {
	f.mu.Lock()
	cb, ok := f.callbacks[lockName]
	f.held[lockName] = true
	f.mu.Unlock()
	if ok {
		cb.OnAcquired(lockName)
	}
}

// fakePgCronRepo is an in-memory pgcron.Repository.
type fakePgCronRepo struct {
	mu       sync.Mutex
	nextID   int64
	jobs     map[string]int64 // name -> id
	failWith error
}

func newFakePgCronRepo() *fakePgCronRepo {
	return &fakePgCronRepo{jobs: make(map[string]int64)}
}

func (r *fakePgCronRepo) Schedule(ctx context.Context, job pgcron.Job) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	r.nextID++
	r.jobs[job.Name] = r.nextID
	return r.nextID, nil
}

func (r *fakePgCronRepo) Unschedule(ctx context.Context, jobID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, id := range r.jobs {
		if id == jobID {
			delete(r.jobs, name)
		}
	}
	return nil
}

func (r *fakePgCronRepo) DoesJobExist(ctx context.Context, name string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.jobs[name]
	return id, ok, nil
}

func (r *fakePgCronRepo) DeleteJobByNameEndingWithInstanceID(ctx context.Context, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.jobs {
		if len(name) >= len(instanceID) && name[len(name)-len(instanceID):] == instanceID {
			delete(r.jobs, name)
		}
	}
	return nil
}

func (r *fakePgCronRepo) FetchEntries(ctx context.Context, offset, limit int) ([]pgcron.Entry, error) {
	return nil, nil
}
func (r *fakePgCronRepo) GetTotalEntries(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.jobs)), nil
}
func (r *fakePgCronRepo) FetchRunDetails(ctx context.Context, jobID int64, offset, limit int) ([]pgcron.RunDetail, error) {
	return nil, nil
}

func (r *fakePgCronRepo) jobCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// fakeExecRepo is an in-memory executorjob.Repository.
type fakeExecRepo struct {
	mu      sync.Mutex
	entries map[string]executorjob.Entry
}

func newFakeExecRepo() *fakeExecRepo {
	return &fakeExecRepo{entries: make(map[string]executorjob.Entry)}
}

func (r *fakeExecRepo) Insert(ctx context.Context, entry executorjob.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Name] = entry
	return nil
}
func (r *fakeExecRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	return ok, nil
}
func (r *fakeExecRepo) DeleteByName(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
	return nil
}
func (r *fakeExecRepo) DeleteByNameEndingWithInstanceID(ctx context.Context, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.entries {
		if len(name) >= len(instanceID) && name[len(name)-len(instanceID):] == instanceID {
			delete(r.entries, name)
		}
	}
	return nil
}
func (r *fakeExecRepo) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]executorjob.Entry)
	return nil
}
func (r *fakeExecRepo) FetchEntries(ctx context.Context, offset, limit int) ([]executorjob.Entry, error) {
	return nil, nil
}
func (r *fakeExecRepo) GetTotalEntries(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

func (r *fakeExecRepo) entryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func newTestScheduler(lockMgr LockManager, cronRepo pgcron.Repository, execRepo executorjob.Repository) *DefaultScheduler {
	return New(Config{
		LockName:    "test-lock",
		InstanceID:  "node-a",
		PgCronRepo:  cronRepo,
		ExecRepo:    execRepo,
		LockManager: lockMgr,
	})
}

func TestScheduler_StartBecomesLeaderAndInstallsQueuedJobs(t *testing.T) {
	lockMgr := newFakeLockManager()
	cronRepo := newFakePgCronRepo()
	execRepo := newFakeExecRepo()
	s := newTestScheduler(lockMgr, cronRepo, execRepo)

	if err := s.ScheduleExecutorJob(ExecutorJob{
		Name:  "cleanup",
		Delay: FixedDelay{InitialDelay: time.Hour, Period: time.Hour},
		Task:  func(ctx context.Context) error { return nil },
	}); err != nil {
		t.Fatalf("ScheduleExecutorJob: %v", err)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(ctx)

	if !s.IsLeader() {
		t.Fatal("expected scheduler to become leader")
	}
	if execRepo.entryCount() != 1 {
		t.Fatalf("expected 1 executor job entry, got %d", execRepo.entryCount())
	}
}

func TestScheduler_DuplicateRegistrationRejected(t *testing.T) {
	lockMgr := newFakeLockManager()
	s := newTestScheduler(lockMgr, newFakePgCronRepo(), newFakeExecRepo())

	job := ExecutorJob{Name: "dup", Delay: FixedDelay{Period: time.Minute}, Task: func(context.Context) error { return nil }}
	if err := s.ScheduleExecutorJob(job); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := s.ScheduleExecutorJob(job); err == nil {
		t.Fatal("expected second registration to fail")
	}
}

func TestScheduler_OnLockReleasedTearsDownAndPurges(t *testing.T) {
	lockMgr := newFakeLockManager()
	cronRepo := newFakePgCronRepo()
	execRepo := newFakeExecRepo()
	s := newTestScheduler(lockMgr, cronRepo, execRepo)

	_ = s.ScheduleExecutorJob(ExecutorJob{
		Name:  "audit-job",
		Delay: FixedDelay{Period: time.Hour},
		Task:  func(context.Context) error { return nil },
	})

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if execRepo.entryCount() != 1 {
		t.Fatalf("expected 1 entry after leadership acquired, got %d", execRepo.entryCount())
	}

	lockMgr.forceRelease("test-lock")

	if s.IsLeader() {
		t.Fatal("expected leadership flag cleared on release")
	}
	if execRepo.entryCount() != 0 {
		t.Fatalf("expected audit table cleared on release, got %d entries", execRepo.entryCount())
	}
}

func TestScheduler_FailoverReinstallsRegisteredJobs(t *testing.T) {
	lockMgr := newFakeLockManager()
	cronRepo := newFakePgCronRepo()
	execRepo := newFakeExecRepo()
	s := newTestScheduler(lockMgr, cronRepo, execRepo)

	_ = s.ScheduleExecutorJob(ExecutorJob{
		Name:  "recurring",
		Delay: FixedDelay{Period: time.Hour},
		Task:  func(context.Context) error { return nil },
	})

	ctx := context.Background()
	_ = s.Start(ctx)
	lockMgr.forceRelease("test-lock")
	lockMgr.forceReacquire("test-lock")

	if !s.IsLeader() {
		t.Fatal("expected leadership regained")
	}
	if execRepo.entryCount() != 1 {
		t.Fatalf("expected job reinstalled after failover, got %d entries", execRepo.entryCount())
	}
}

func TestScheduler_ScheduleFallsBackWhenPgCronUnavailable(t *testing.T) {
	lockMgr := newFakeLockManager()
	cronRepo := newFakePgCronRepo()
	cronRepo.failWith = pgerr.ErrExtensionNotLoaded
	execRepo := newFakeExecRepo()
	s := newTestScheduler(lockMgr, cronRepo, execRepo)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.IsPgCronAvailable() {
		t.Fatal("expected pg_cron marked unavailable after failed probe")
	}

	err := s.Schedule("ttl-job", CronConfiguration{CronExpression: "*/10 * * * * *"}, CronTarget{FunctionName: "delete_expired"},
		func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if execRepo.entryCount() != 1 {
		t.Fatalf("expected in-process fallback job installed, got %d entries", execRepo.entryCount())
	}
	if cronRepo.jobCount() != 0 {
		t.Fatalf("expected no pg_cron job installed, got %d", cronRepo.jobCount())
	}
}

func TestScheduler_StopHaltsTickingExecutorJob(t *testing.T) {
	lockMgr := newFakeLockManager()
	s := newTestScheduler(lockMgr, newFakePgCronRepo(), newFakeExecRepo())

	var mu sync.Mutex
	ticks := 0
	if err := s.ScheduleExecutorJob(ExecutorJob{
		Name:  "ticker",
		Delay: FixedDelay{InitialDelay: time.Millisecond, Period: 5 * time.Millisecond},
		Task: func(ctx context.Context) error {
			mu.Lock()
			ticks++
			mu.Unlock()
			return nil
		},
	}); err != nil {
		t.Fatalf("ScheduleExecutorJob: %v", err)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		got := ticks
		mu.Unlock()
		if got > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the executor job to tick at least once")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	mu.Lock()
	afterStop := ticks
	mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	settled := ticks
	mu.Unlock()

	if settled != afterStop {
		t.Fatalf("expected ticking to stop after Stop(), ticks went from %d to %d", afterStop, settled)
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	lockMgr := newFakeLockManager()
	s := newTestScheduler(lockMgr, newFakePgCronRepo(), newFakeExecRepo())
	ctx := context.Background()
	_ = s.Start(ctx)
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if s.IsStarted() {
		t.Fatal("expected IsStarted false after Stop")
	}
}
