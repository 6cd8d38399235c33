package fencedlock

// Callbacks are invoked by a Manager implementation on an unspecified
// goroutine; consumers must not assume same-goroutine delivery relative to
// AcquireLockAsync or to each other. OnAcquired/OnReleased may interleave
// any number of times over the lifetime of a lock name registration.
type Callbacks struct {
	OnAcquired func(lockName string)
	OnReleased func(lockName string)
}

// Manager is the async single-leader election contract consumed by the
// scheduler core (spec §4.B). Exactly one contender across the cluster
// holds a given lock name at a time; the guarantee is enforced by the
// implementation's storage, not by this interface.
type Manager interface {
	// AcquireLockAsync starts (or restarts) a background contender for
	// lockName. It is safe to call multiple times for the same name;
	// implementations should treat a repeat call as updating callbacks
	// rather than starting a second contender.
	AcquireLockAsync(lockName string, callbacks Callbacks)

	// CancelAsyncLockAcquiring withdraws this node's contention for
	// lockName. If this node currently holds the lock, it is released
	// and OnReleased fires before this call returns control to any
	// pending release notification — but see individual implementations
	// for their exact synchronization guarantees.
	CancelAsyncLockAcquiring(lockName string)
}
