package fencedlock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPollInterval = time.Second
	defaultConfirmEvery = 5 * time.Second
)

// PostgresAdvisoryLockManager implements Manager on top of
// pg_try_advisory_lock/pg_advisory_unlock. A session-level advisory lock
// is tied to the connection that took it, so each contended lock name
// pins one dedicated *pgxpool.Conn for as long as this node contends for
// or holds it.
type PostgresAdvisoryLockManager struct {
	pool         *pgxpool.Pool
	logger       *slog.Logger
	pollInterval time.Duration

	mu       sync.Mutex
	contests map[string]*contest
}

type contest struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPostgresAdvisoryLockManager builds a Manager. pollInterval controls
// how often a non-holder retries pg_try_advisory_lock; zero selects a
// 1-second default.
func NewPostgresAdvisoryLockManager(pool *pgxpool.Pool, logger *slog.Logger, pollInterval time.Duration) *PostgresAdvisoryLockManager {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &PostgresAdvisoryLockManager{
		pool:         pool,
		logger:       logger,
		pollInterval: pollInterval,
		contests:     make(map[string]*contest),
	}
}

func lockKey(lockName string) int64 {
	return int64(xxhash.Sum64String(lockName))
}

func (m *PostgresAdvisoryLockManager) AcquireLockAsync(lockName string, callbacks Callbacks) {
	m.mu.Lock()
	if existing, ok := m.contests[lockName]; ok {
		existing.cancel()
		<-existing.done
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &contest{cancel: cancel, done: make(chan struct{})}
	m.contests[lockName] = c
	m.mu.Unlock()

	go m.contendLoop(ctx, lockName, callbacks, c.done)
}

func (m *PostgresAdvisoryLockManager) CancelAsyncLockAcquiring(lockName string) {
	m.mu.Lock()
	c, ok := m.contests[lockName]
	delete(m.contests, lockName)
	m.mu.Unlock()
	if !ok {
		return
	}
	c.cancel()
	<-c.done
}

func (m *PostgresAdvisoryLockManager) contendLoop(ctx context.Context, lockName string, callbacks Callbacks, done chan struct{}) {
	defer close(done)
	key := lockKey(lockName)

	for {
		conn, ok := m.tryAcquire(ctx, lockName, key)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if callbacks.OnAcquired != nil {
			callbacks.OnAcquired(lockName)
		}
		m.holdUntilLost(ctx, conn, key)
		if callbacks.OnReleased != nil {
			callbacks.OnReleased(lockName)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// tryAcquire polls pg_try_advisory_lock on a freshly-acquired connection
// until it succeeds or ctx is cancelled. On success the connection is
// returned still checked out of the pool; the caller owns releasing it.
func (m *PostgresAdvisoryLockManager) tryAcquire(ctx context.Context, lockName string, key int64) (*pgxpool.Conn, bool) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}

		conn, err := m.pool.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false
			}
			m.logger.Debug("fencedlock: acquire connection failed, retrying", "lock", lockName, "error", err)
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return nil, false
			}
		}

		var acquired bool
		err = conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", key).Scan(&acquired)
		if err != nil {
			conn.Release()
			m.logger.Debug("fencedlock: pg_try_advisory_lock failed, retrying", "lock", lockName, "error", err)
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return nil, false
			}
		}
		if acquired {
			return conn, true
		}
		conn.Release()

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// holdUntilLost keeps conn checked out and periodically confirms the
// session is still alive. It returns when ctx is cancelled (explicit
// release requested) or the connection is lost (host eviction / IO
// fault), always releasing the lock and the connection before returning;
// on a lost connection the lock is dropped with the server session.
func (m *PostgresAdvisoryLockManager) holdUntilLost(ctx context.Context, conn *pgxpool.Conn, key int64) {
	defer conn.Release()

	confirm := time.NewTicker(defaultConfirmEvery)
	defer confirm.Stop()

	for {
		select {
		case <-ctx.Done():
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := conn.Exec(unlockCtx, "select pg_advisory_unlock($1)", key); err != nil {
				m.logger.Warn("fencedlock: unlock on release failed", "error", err)
			}
			return
		case <-confirm.C:
			if err := conn.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					// Release was requested mid-ping: unlock via the ctx.Done case.
					continue
				}
				m.logger.Warn("fencedlock: lost connection while holding lock", "error", err)
				return
			}
		}
	}
}
