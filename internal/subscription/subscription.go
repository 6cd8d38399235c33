package subscription

import (
	"context"

	"github.com/trustworks/essentials-scheduler/internal/eventstore"
)

// EventStoreSubscription is a durable, restartable subscription to one
// AggregateType's event stream.
type EventStoreSubscription interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsActive() bool
	IsStarted() bool
	SubscriberID() eventstore.SubscriberId
	AggregateType() eventstore.AggregateType
	Unsubscribe()
	OnlyIncludeEventsForTenant() *eventstore.Tenant
	CurrentResumePoint() *ResumePoint
	IsExclusive() bool
	IsInTransaction() bool
	// Request signals the subscription may deliver up to n further
	// events. Only meaningful while the subscription is started.
	Request(n int64)
	// ResetFrom halts delivery (if running), overrides the resume
	// point to subscribeFromAndIncluding, notifies the handler and
	// resetProcessor, then resumes (if it was running).
	ResetFrom(ctx context.Context, subscribeFromAndIncluding eventstore.GlobalEventOrder, resetProcessor func(eventstore.GlobalEventOrder)) error
}
