package subscription

import (
	"fmt"
	"sync"

	"github.com/trustworks/essentials-scheduler/internal/eventstore"
)

// Manager tracks the subscriptions a process has created, so an
// operator surface can list them without threading references through
// application wiring by hand.
type Manager struct {
	mu   sync.RWMutex
	subs map[string]EventStoreSubscription
}

// NewManager builds an empty Manager.
func NewManager() *Manager {
	return &Manager{subs: make(map[string]EventStoreSubscription)}
}

func key(subscriberID eventstore.SubscriberId, aggregateType eventstore.AggregateType) string {
	return fmt.Sprintf("%s/%s", subscriberID, aggregateType)
}

// Register records sub so it is returned by List. unsubscribeCallback
// given to the subscription at construction time should call
// Unregister so the two stay consistent.
func (m *Manager) Register(sub EventStoreSubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[key(sub.SubscriberID(), sub.AggregateType())] = sub
}

// Unregister drops sub from the manager's bookkeeping.
func (m *Manager) Unregister(sub EventStoreSubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, key(sub.SubscriberID(), sub.AggregateType()))
}

// List returns a snapshot of every currently registered subscription.
func (m *Manager) List() []EventStoreSubscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EventStoreSubscription, 0, len(m.subs))
	for _, sub := range m.subs {
		out = append(out, sub)
	}
	return out
}
