package eventstore

import (
	"time"

	"github.com/google/uuid"
)

// GlobalEventOrder is the strictly increasing order of an event across
// every aggregate of an AggregateType. Resume points are expressed in
// this unit.
type GlobalEventOrder int64

// AggregateType names a stream of aggregates sharing an event schema,
// e.g. "orders" or "accounts".
type AggregateType string

// SubscriberId identifies a durable subscriber. A (SubscriberId,
// AggregateType) pair owns exactly one SubscriptionResumePoint.
type SubscriberId string

// Tenant scopes events to a single tenant when multi-tenancy is in use.
type Tenant string

// PersistedEvent is one event read back off the event store's stream.
type PersistedEvent struct {
	EventID          uuid.UUID
	AggregateType    AggregateType
	AggregateID      string
	GlobalEventOrder GlobalEventOrder
	EventOrder       int64
	EventTypeOrName  string
	Timestamp        time.Time
	Payload          []byte
	Tenant           *Tenant
}
