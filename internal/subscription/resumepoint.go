package subscription

import (
	"sync"

	"github.com/trustworks/essentials-scheduler/internal/eventstore"
)

// ResumePoint is the durable progress marker for one
// (SubscriberID, AggregateType) pair. It is created on first subscribe
// from a caller-provided initial order and mutated only by the
// subscription that owns it.
type ResumePoint struct {
	SubscriberID  eventstore.SubscriberId
	AggregateType eventstore.AggregateType

	mu                     sync.Mutex
	resumeFromAndIncluding eventstore.GlobalEventOrder
}

// NewResumePoint constructs a ResumePoint starting from resumeFromAndIncluding.
func NewResumePoint(subscriberID eventstore.SubscriberId, aggregateType eventstore.AggregateType, resumeFromAndIncluding eventstore.GlobalEventOrder) *ResumePoint {
	return &ResumePoint{
		SubscriberID:           subscriberID,
		AggregateType:          aggregateType,
		resumeFromAndIncluding: resumeFromAndIncluding,
	}
}

// ResumeFromAndIncluding returns the order this subscription should
// next start, or resume, polling from.
func (r *ResumePoint) ResumeFromAndIncluding() eventstore.GlobalEventOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resumeFromAndIncluding
}

// SetResumeFromAndIncluding overrides the resume order. Used by the
// batching bridge as it acknowledges events, and by ResetFrom.
func (r *ResumePoint) SetResumeFromAndIncluding(order eventstore.GlobalEventOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumeFromAndIncluding = order
}
