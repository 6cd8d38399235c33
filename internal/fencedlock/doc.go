// Package fencedlock defines the async single-leader election interface
// the scheduler consumes, plus one concrete implementation backed by
// PostgreSQL advisory locks.
//
// The storage side of a production fenced lock (fence-token issuance,
// lease renewal against node eviction) is out of scope here — this
// package exists so the scheduler has a real implementation to run
// against in tests and in the schedulerd demo binary, not as a
// replacement for a hardened distributed lock.
package fencedlock
