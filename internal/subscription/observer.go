package subscription

import (
	"time"

	"github.com/trustworks/essentials-scheduler/internal/eventstore"
)

// Observer is notified of subscription lifecycle events, for metrics
// and diagnostics. All methods must return promptly; they run on the
// subscription's own goroutine.
type Observer interface {
	ResolveResumePoint(point *ResumePoint, initialResumeFromAndIncluding eventstore.GlobalEventOrder, sub EventStoreSubscription, resolveDuration time.Duration)
	RequestingEvents(n int64, sub EventStoreSubscription)
	Unsubscribing(sub EventStoreSubscription)
	ResettingFrom(order eventstore.GlobalEventOrder, sub EventStoreSubscription)
}

// NoOpObserver implements Observer with no-ops; the default when a
// caller doesn't care about subscription telemetry.
type NoOpObserver struct{}

func (NoOpObserver) ResolveResumePoint(*ResumePoint, eventstore.GlobalEventOrder, EventStoreSubscription, time.Duration) {
}
func (NoOpObserver) RequestingEvents(int64, EventStoreSubscription) {}
func (NoOpObserver) Unsubscribing(EventStoreSubscription)           {}
func (NoOpObserver) ResettingFrom(eventstore.GlobalEventOrder, EventStoreSubscription) {
}

var _ Observer = NoOpObserver{}
