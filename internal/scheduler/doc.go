// Package scheduler is the singleton-elected job scheduler: it manages
// externally-persisted pg_cron jobs and in-process fixed-delay jobs,
// gates their execution on cluster leadership via a fenced lock, and
// re-installs everything on failover.
//
// Unlike a generic tick-based due-schedule scanner, this package owns
// leadership itself: it registers as a contender with a
// fencedlock.Manager and reacts to OnAcquired/OnReleased by installing
// or tearing down every registered job. Callers never poll leadership —
// they register jobs (possibly before Start) and the scheduler decides
// when to run them.
package scheduler
