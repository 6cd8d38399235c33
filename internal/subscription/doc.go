// Package subscription implements a non-exclusive, batched,
// asynchronous catch-up subscription on top of internal/eventstore: it
// pulls events from an EventStore's backpressured poll stream, batches
// them by size or latency, hands batches to a caller-supplied handler,
// and persists a durable resume point on stop and on reset, so a restart
// picks up where the last stop or reset left off. The point is not
// persisted per batch: after a crash, events delivered since the last
// persist are delivered again.
package subscription
