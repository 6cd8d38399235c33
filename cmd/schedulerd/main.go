// schedulerd is the long-running daemon: it contends for leadership on
// one fenced lock, and while leader runs the pg_cron/in-process job
// scheduler and the TTL manager on top of it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trustworks/essentials-scheduler/internal/db"
	"github.com/trustworks/essentials-scheduler/internal/fencedlock"
	"github.com/trustworks/essentials-scheduler/internal/instanceid"
	"github.com/trustworks/essentials-scheduler/internal/scheduler"
	"github.com/trustworks/essentials-scheduler/internal/scheduler/executorjob"
	"github.com/trustworks/essentials-scheduler/internal/scheduler/pgcron"
	"github.com/trustworks/essentials-scheduler/internal/telemetry"
	"github.com/trustworks/essentials-scheduler/internal/ttl"
)

const leaderLockName = "schedulerd-leader"

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting schedulerd")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	metrics := telemetry.NewMetrics(nil)

	id, err := instanceid.Resolve()
	if err != nil {
		logger.Error("failed to resolve instance id", "error", err)
		os.Exit(1)
	}
	logger.Info("resolved instance id", "instance_id", id)

	lockManager := fencedlock.NewPostgresAdvisoryLockManager(pool, logger, 2*time.Second)

	sched := scheduler.New(scheduler.Config{
		LockName:    leaderLockName,
		InstanceID:  id,
		PgCronRepo:  pgcron.NewPostgresRepository(pool),
		ExecRepo:    executorjob.NewPostgresRepository(pool),
		LockManager: lockManagerAdapter{lockManager},
		Logger:      logger,
		Metrics:     metrics,
	})

	ttlManager, err := ttl.New(ttl.Config{
		Scheduler:  sched,
		UnitOfWork: db.NewUnitOfWorkFactory(pool),
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		logger.Error("failed to build TTL manager", "error", err)
		os.Exit(1)
	}

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	if err := ttlManager.Start(ctx); err != nil {
		logger.Error("failed to start TTL manager", "error", err)
		os.Exit(1)
	}
	logger.Info("schedulerd started", "leader_lock", leaderLockName)

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Error("failed to stop scheduler cleanly", "error", err)
	}
	logger.Info("schedulerd stopped")
}

// lockManagerAdapter bridges fencedlock.Manager's Callbacks type to
// scheduler.LockManager's structurally identical but distinct one —
// the two packages deliberately don't share a type so neither depends
// on the other.
type lockManagerAdapter struct {
	inner fencedlock.Manager
}

func (a lockManagerAdapter) AcquireLockAsync(lockName string, callbacks scheduler.Callbacks) {
	a.inner.AcquireLockAsync(lockName, fencedlock.Callbacks{
		OnAcquired: callbacks.OnAcquired,
		OnReleased: callbacks.OnReleased,
	})
}

func (a lockManagerAdapter) CancelAsyncLockAcquiring(lockName string) {
	a.inner.CancelAsyncLockAcquiring(lockName)
}
