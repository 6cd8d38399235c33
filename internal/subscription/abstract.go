package subscription

import (
	"log/slog"
	"sync/atomic"

	"github.com/trustworks/essentials-scheduler/internal/eventstore"
)

// abstractSubscription holds the fields and trivial behaviour every
// EventStoreSubscription implementation shares. It is embedded by
// value, not used polymorphically — Go has no virtual dispatch, so
// subtype-specific overrides (see BatchedAsynchronousSubscription's
// error handling) are composed explicitly by the embedder rather than
// overridden.
type abstractSubscription struct {
	logger *slog.Logger

	eventStore                 eventstore.EventStore
	aggregateType              eventstore.AggregateType
	subscriberID               eventstore.SubscriberId
	onlyIncludeEventsForTenant *eventstore.Tenant
	observer                   Observer
	unsubscribeCallback        func(EventStoreSubscription)

	started atomic.Bool
}

func newAbstractSubscription(logger *slog.Logger, store eventstore.EventStore, aggregateType eventstore.AggregateType, subscriberID eventstore.SubscriberId, tenant *eventstore.Tenant, observer Observer, unsubscribeCallback func(EventStoreSubscription)) abstractSubscription {
	if observer == nil {
		observer = NoOpObserver{}
	}
	return abstractSubscription{
		logger:                     logger,
		eventStore:                 store,
		aggregateType:              aggregateType,
		subscriberID:               subscriberID,
		onlyIncludeEventsForTenant: tenant,
		observer:                   observer,
		unsubscribeCallback:        unsubscribeCallback,
	}
}

func (a *abstractSubscription) SubscriberID() eventstore.SubscriberId         { return a.subscriberID }
func (a *abstractSubscription) AggregateType() eventstore.AggregateType       { return a.aggregateType }
func (a *abstractSubscription) OnlyIncludeEventsForTenant() *eventstore.Tenant { return a.onlyIncludeEventsForTenant }
func (a *abstractSubscription) IsStarted() bool                               { return a.started.Load() }

func (a *abstractSubscription) unsubscribe(self EventStoreSubscription) {
	a.logger.Info("initiating unsubscription", "subscriber_id", a.subscriberID, "aggregate_type", a.aggregateType)
	a.observer.Unsubscribing(self)
	a.unsubscribeCallback(self)
}

// onErrorHandlingEvent is the common "log and skip" error path; callers
// compose it with their own demand-restoring behaviour.
func (a *abstractSubscription) onErrorHandlingEvent(e eventstore.PersistedEvent, cause error) {
	a.logger.Error("skipping event because of error",
		"subscriber_id", a.subscriberID,
		"aggregate_type", a.aggregateType,
		"global_event_order", e.GlobalEventOrder,
		"event_type", e.EventTypeOrName,
		"error", cause)
}
