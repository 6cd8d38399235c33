package eventstore

import (
	"context"
	"time"
)

// PollOptions carries the optional tuning parameters PollEvents accepts.
// A zero value for PollBatchSize or PollInterval lets the event store
// pick its own default.
type PollOptions struct {
	PollBatchSize int
	PollInterval  time.Duration
	Tenant        *Tenant
	SubscriberID  SubscriberId
}

// EventStore is the polling surface the subscription engine depends on.
// PollEvents returns a cold, backpressured stream standing in for the
// reactive Flux<PersistedEvent> of the system this package mirrors:
//
//   - events arrives events already filtered by aggregateType, fromOrder
//     (inclusive) and Tenant, in ascending GlobalEventOrder;
//   - requestMore(n) signals the store it may push up to n further
//     events; no event is sent before demand for it has been requested;
//   - cancel stops the underlying poll loop and closes events.
//
// Implementations must close events after cancel is called, and must
// stop sending once ctx is done.
type EventStore interface {
	PollEvents(ctx context.Context, aggregateType AggregateType, fromAndIncluding GlobalEventOrder, opts PollOptions) (events <-chan PersistedEvent, requestMore func(n int), cancel func(), err error)
}
