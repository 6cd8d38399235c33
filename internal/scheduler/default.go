package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trustworks/essentials-scheduler/internal/instanceid"
	"github.com/trustworks/essentials-scheduler/internal/pgerr"
	"github.com/trustworks/essentials-scheduler/internal/scheduler/executorjob"
	"github.com/trustworks/essentials-scheduler/internal/scheduler/pgcron"
)

// DefaultScheduler is the reference Scheduler implementation, ported from
// the leadership-owning scheduler this codebase is built around: it
// contends for a single fenced lock and installs/tears down every
// registered job in response to acquisition and release.
type DefaultScheduler struct {
	lockName       string
	instanceID     string
	pgCronRepo     pgcron.Repository
	execRepo       executorjob.Repository
	lockManager    LockManager
	logger         *slog.Logger
	metrics        MetricsSink
	probeJobPrefix string

	started         atomic.Bool
	leader          atomic.Bool
	pgCronAvailable atomic.Bool

	// sweepMu linearizes onLockAcquired/onLockReleased processing. Our
	// own fencedlock.Manager implementations already invoke callbacks
	// for a given lock name from a single goroutine in strict sequence,
	// so a mutex achieves the same "single-consumer" serialization the
	// design notes describe for a channel-based actor, with less
	// machinery.
	sweepMu sync.Mutex

	// regMu guards the registration lists below. Iteration during
	// registration (copy-on-read snapshot) must be safe, matching the
	// copy-on-write-list contract in spec §5.
	regMu               sync.RWMutex
	pendingPgCronJobs   []pgcron.Job
	pendingExecutorJobs []ExecutorJob

	installedPgCronIDs map[string]int64
	runningExecutors   map[string]context.CancelFunc
}

// New builds a DefaultScheduler. It does not contact the database or the
// lock manager until Start is called.
func New(cfg Config) *DefaultScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.ProbeJobPrefix
	if prefix == "" {
		prefix = "probe"
	}
	return &DefaultScheduler{
		lockName:           cfg.LockName,
		instanceID:         cfg.InstanceID,
		pgCronRepo:         cfg.PgCronRepo,
		execRepo:           cfg.ExecRepo,
		lockManager:        cfg.LockManager,
		logger:             logger,
		metrics:            cfg.Metrics,
		probeJobPrefix:     prefix,
		installedPgCronIDs: make(map[string]int64),
		runningExecutors:   make(map[string]context.CancelFunc),
	}
}

func (s *DefaultScheduler) IsStarted() bool         { return s.started.Load() }
func (s *DefaultScheduler) IsLeader() bool          { return s.leader.Load() }
func (s *DefaultScheduler) IsPgCronAvailable() bool { return s.pgCronAvailable.Load() }

// Start is idempotent: probes pg_cron availability, purges any residue
// from a prior crash of this instance, and hands leader election to the
// lock manager. No exception from the extension probe is fatal —
// availability simply falls back to false.
func (s *DefaultScheduler) Start(ctx context.Context) error {
	if s.started.Load() {
		return nil
	}

	if s.instanceID == "" {
		id, err := instanceid.Resolve()
		if err != nil {
			return fmt.Errorf("resolve instance id: %w", err)
		}
		s.instanceID = id
	}

	available, err := pgcron.ProbeAvailable(ctx, s.pgCronRepo, s.qualifiedName(s.probeJobPrefix))
	if err != nil {
		s.logger.Warn("pg_cron availability probe failed, disabling pg_cron for this start cycle", "error", err)
		available = false
	}
	s.pgCronAvailable.Store(available)
	s.logger.Info("scheduler starting", "instance_id", s.instanceID, "pg_cron_available", available)

	s.purgeInstanceResidue(ctx)

	s.lockManager.AcquireLockAsync(s.lockName, Callbacks{
		OnAcquired: s.onLockAcquired(ctx),
		OnReleased: s.onLockReleased(ctx),
	})

	s.started.Store(true)
	return nil
}

// Stop cancels leader election, tears down everything this instance
// installed, and marks the scheduler stopped. If this instance is
// leader, the audit table is cleared before the lock is released.
func (s *DefaultScheduler) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	if s.leader.Load() {
		if err := s.execRepo.DeleteAll(ctx); err != nil {
			s.logDropped(err, "clear audit table on stop")
		}
	}

	s.lockManager.CancelAsyncLockAcquiring(s.lockName)

	s.purgeInstanceResidue(ctx)
	s.started.Store(false)
	return nil
}

func (s *DefaultScheduler) qualifiedName(name string) string {
	return name + "-" + s.instanceID
}

func (s *DefaultScheduler) purgeInstanceResidue(ctx context.Context) {
	if err := s.pgCronRepo.DeleteJobByNameEndingWithInstanceID(ctx, s.instanceID); err != nil {
		s.logDropped(err, "purge pg_cron residue")
	}
	if err := s.execRepo.DeleteByNameEndingWithInstanceID(ctx, s.instanceID); err != nil {
		s.logDropped(err, "purge executor job residue")
	}
}

// logDropped logs an absorbed error at DEBUG when it looks like a
// transient IO fault, WARN otherwise. It is never rethrown — see spec §7.
func (s *DefaultScheduler) logDropped(err error, action string) {
	if pgerr.IsTransientIO(err) {
		s.logger.Debug("scheduler: "+action+" failed (transient)", "error", err)
		return
	}
	s.logger.Warn("scheduler: "+action+" failed", "error", err)
}

func (s *DefaultScheduler) onLockAcquired(ctx context.Context) func(string) {
	return func(lockName string) {
		s.sweepMu.Lock()
		defer s.sweepMu.Unlock()

		s.logger.Info("scheduler acquired leadership", "lock_name", lockName)
		s.purgeInstanceResidue(ctx)

		s.regMu.RLock()
		pgCronJobs := append([]pgcron.Job(nil), s.pendingPgCronJobs...)
		executorJobs := append([]ExecutorJob(nil), s.pendingExecutorJobs...)
		s.regMu.RUnlock()

		if s.pgCronAvailable.Load() {
			for _, job := range pgCronJobs {
				s.installPgCronJob(ctx, job)
			}
		}
		for _, job := range executorJobs {
			s.installExecutorJob(ctx, job)
		}

		// Set last, so that concurrent registrations racing this sweep
		// are merely queued for the next one.
		s.leader.Store(true)
		if s.metrics != nil {
			s.metrics.LeadershipChanged(lockName, true)
		}
	}
}

func (s *DefaultScheduler) onLockReleased(ctx context.Context) func(string) {
	return func(lockName string) {
		s.sweepMu.Lock()
		defer s.sweepMu.Unlock()

		s.leader.Store(false)
		if s.metrics != nil {
			s.metrics.LeadershipChanged(lockName, false)
		}
		s.logger.Info("scheduler lost leadership", "lock_name", lockName)

		s.regMu.Lock()
		for name, cancel := range s.runningExecutors {
			cancel()
			delete(s.runningExecutors, name)
		}
		s.regMu.Unlock()

		if err := s.execRepo.DeleteAll(ctx); err != nil {
			s.logDropped(err, "clear audit table on release")
		}

		s.regMu.Lock()
		for name, id := range s.installedPgCronIDs {
			if err := s.pgCronRepo.Unschedule(ctx, id); err != nil {
				s.logDropped(err, "unschedule pg_cron job "+name)
			}
			delete(s.installedPgCronIDs, name)
		}
		s.regMu.Unlock()

		if err := s.pgCronRepo.DeleteJobByNameEndingWithInstanceID(ctx, s.instanceID); err != nil {
			s.logDropped(err, "purge pg_cron residue on release")
		}
	}
}

// SchedulePgCronJob registers job. If this instance is already leader and
// pg_cron is available, it is installed immediately; otherwise it is
// queued for the next onLockAcquired sweep.
func (s *DefaultScheduler) SchedulePgCronJob(job pgcron.Job) error {
	s.regMu.Lock()
	for _, existing := range s.pendingPgCronJobs {
		if existing.Name == job.Name {
			s.regMu.Unlock()
			return fmt.Errorf("%w: %q", ErrAlreadyRegistered, job.Name)
		}
	}
	s.pendingPgCronJobs = append(s.pendingPgCronJobs, job)
	s.regMu.Unlock()

	if s.leader.Load() && s.pgCronAvailable.Load() {
		s.installPgCronJob(context.Background(), job)
	}
	return nil
}

// ScheduleExecutorJob registers job. If this instance is already leader,
// it is installed immediately; otherwise it is queued.
func (s *DefaultScheduler) ScheduleExecutorJob(job ExecutorJob) error {
	s.regMu.Lock()
	for _, existing := range s.pendingExecutorJobs {
		if existing.Name == job.Name {
			s.regMu.Unlock()
			return fmt.Errorf("%w: %q", ErrAlreadyRegistered, job.Name)
		}
	}
	s.pendingExecutorJobs = append(s.pendingExecutorJobs, job)
	s.regMu.Unlock()

	if s.leader.Load() {
		s.installExecutorJob(context.Background(), job)
	}
	return nil
}

// Schedule implements the mode-selection rules of spec §4.E: a Cron
// configuration installs as pg_cron when available, else falls back to
// an in-process job derived from the configuration; a FixedDelay
// configuration always installs in-process.
func (s *DefaultScheduler) Schedule(name string, cfg ScheduleConfiguration, target CronTarget, task func(ctx context.Context) error) error {
	switch c := cfg.(type) {
	case CronConfiguration:
		if s.pgCronAvailable.Load() {
			return s.SchedulePgCronJob(pgcron.Job{
				Name:           name,
				FunctionName:   target.FunctionName,
				Args:           target.Args,
				CronExpression: c.CronExpression,
			})
		}
		s.logger.Warn("pg_cron unavailable, falling back to in-process schedule", "job_name", name)
		fallback := c.ToFixedDelayConfiguration()
		return s.ScheduleExecutorJob(ExecutorJob{Name: name, Delay: fallback, Task: task})
	case FixedDelayConfiguration:
		return s.ScheduleExecutorJob(ExecutorJob{Name: name, Delay: c.FixedDelay, Task: task})
	default:
		return fmt.Errorf("scheduler: unknown ScheduleConfiguration type %T", cfg)
	}
}

func (s *DefaultScheduler) installPgCronJob(ctx context.Context, job pgcron.Job) {
	qualified := job
	qualified.Name = s.qualifiedName(job.Name)

	if _, exists, err := s.pgCronRepo.DoesJobExist(ctx, qualified.Name); err != nil {
		s.logDropped(err, "check pg_cron job exists "+qualified.Name)
	} else if exists {
		return
	}

	id, err := s.pgCronRepo.Schedule(ctx, qualified)
	if err != nil {
		if pgerr.IsExtensionNotLoaded(err) {
			s.pgCronAvailable.Store(false)
		}
		s.logger.Error("failed to install pg_cron job", "job_name", qualified.Name, "error", err)
		if s.metrics != nil {
			s.metrics.JobInstallFailed("pgcron")
		}
		return
	}

	s.regMu.Lock()
	s.installedPgCronIDs[job.Name] = id
	s.regMu.Unlock()

	if s.metrics != nil {
		s.metrics.JobInstalled("pgcron")
	}
}

func (s *DefaultScheduler) installExecutorJob(ctx context.Context, job ExecutorJob) {
	s.regMu.RLock()
	_, running := s.runningExecutors[job.Name]
	s.regMu.RUnlock()
	if running {
		return
	}

	qualified := s.qualifiedName(job.Name)
	if exists, err := s.execRepo.ExistsByName(ctx, qualified); err != nil {
		s.logDropped(err, "check executor job exists "+qualified)
	} else if exists {
		return
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	s.regMu.Lock()
	s.runningExecutors[job.Name] = cancel
	s.regMu.Unlock()

	if err := s.execRepo.Insert(ctx, executorjob.Entry{Name: qualified, Host: s.instanceID}); err != nil {
		s.logDropped(err, "insert executor job audit row "+qualified)
	}

	if s.metrics != nil {
		s.metrics.JobInstalled("executor")
	}

	go s.runExecutorLoop(tickCtx, job)
}

// runExecutorLoop drives one fixed-delay job. Ticks are serialized (a
// single logical worker per job); a slow tick delays the next one rather
// than overlapping it. A panicking or error-returning task is logged and
// swallowed so the loop keeps running.
func (s *DefaultScheduler) runExecutorLoop(ctx context.Context, job ExecutorJob) {
	next := time.Now().Add(job.Delay.InitialDelay)
	timer := time.NewTimer(job.Delay.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.runTaskSafely(ctx, job)
			select {
			case <-ctx.Done():
				return
			default:
				// Fixed rate: the next tick is due Period after this
				// tick's scheduled time; an overrun fires it at once.
				next = next.Add(job.Delay.Period)
				timer.Reset(time.Until(next))
			}
		}
	}
}

func (s *DefaultScheduler) runTaskSafely(ctx context.Context, job ExecutorJob) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("executor job task panicked", "job_name", job.Name, "panic", r)
		}
	}()
	if err := job.Task(ctx); err != nil {
		s.logger.Error("executor job task failed", "job_name", job.Name, "error", err)
	}
}

func (s *DefaultScheduler) FetchPgCronEntries(ctx context.Context, offset, limit int) ([]pgcron.Entry, error) {
	return s.pgCronRepo.FetchEntries(ctx, offset, limit)
}

func (s *DefaultScheduler) GetTotalPgCronEntries(ctx context.Context) (int64, error) {
	return s.pgCronRepo.GetTotalEntries(ctx)
}

func (s *DefaultScheduler) FetchPgCronJobRunDetails(ctx context.Context, jobID int64, offset, limit int) ([]pgcron.RunDetail, error) {
	return s.pgCronRepo.FetchRunDetails(ctx, jobID, offset, limit)
}

func (s *DefaultScheduler) FetchExecutorJobEntries(ctx context.Context, offset, limit int) ([]executorjob.Entry, error) {
	return s.execRepo.FetchEntries(ctx, offset, limit)
}

func (s *DefaultScheduler) GetTotalExecutorJobEntries(ctx context.Context) (int64, error) {
	return s.execRepo.GetTotalEntries(ctx)
}

var _ Scheduler = (*DefaultScheduler)(nil)
