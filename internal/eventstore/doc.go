// Package eventstore declares the event store surface the subscription
// engine polls against. The event store implementation itself lives
// outside this module; this package only carries the types and the
// interface contract so internal/subscription has something concrete
// to depend on and test against.
package eventstore
