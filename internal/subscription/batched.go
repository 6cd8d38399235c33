package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trustworks/essentials-scheduler/internal/eventstore"
)

// BatchedPersistedEventHandler processes batches delivered by a
// BatchedAsynchronousSubscription.
type BatchedPersistedEventHandler interface {
	HandleBatch(ctx context.Context, events []eventstore.PersistedEvent) error
	// OnResetFrom is called during ResetFrom, after the resume point
	// has been overridden and persisted but before the subscription
	// (if it was running) restarts.
	OnResetFrom(sub EventStoreSubscription, subscribeFromAndIncluding eventstore.GlobalEventOrder)
}

// MetricsSink is the subset of telemetry.Metrics the subscription
// engine updates.
type MetricsSink interface {
	SubscriptionBatchDelivered(subscriberID string, resumeOrder int64)
}

// BatchedConfig wires a BatchedAsynchronousSubscription's collaborators
// and tuning knobs.
type BatchedConfig struct {
	Logger *slog.Logger

	EventStore                    eventstore.EventStore
	DurableSubscriptionRepository DurableSubscriptionRepository
	AggregateType                 eventstore.AggregateType
	SubscriberID                  eventstore.SubscriberId

	OnFirstSubscribeFromAndIncludingGlobalOrder eventstore.GlobalEventOrder
	OnlyIncludeEventsForTenant                  *eventstore.Tenant

	MaxBatchSize  int
	MaxLatency    time.Duration
	PollBatchSize int
	PollInterval  time.Duration

	Handler             BatchedPersistedEventHandler
	Observer            Observer
	Metrics             MetricsSink
	UnsubscribeCallback func(EventStoreSubscription)
}

// BatchedAsynchronousSubscription is the reference EventStoreSubscription:
// non-exclusive (any number of nodes may run the same subscriberId
// concurrently; the event store's own locking, if any, arbitrates), and
// batched (the handler is invoked with up to MaxBatchSize events, or
// whatever accumulated within MaxLatency, whichever comes first).
type BatchedAsynchronousSubscription struct {
	abstractSubscription

	durableSubscriptionRepository DurableSubscriptionRepository
	initialResumeFromAndIncluding eventstore.GlobalEventOrder
	maxBatchSize                  int
	maxLatency                    time.Duration
	pollBatchSize                 int
	pollInterval                  time.Duration
	handler                       BatchedPersistedEventHandler
	metrics                       MetricsSink

	mu          sync.Mutex
	resumePoint *ResumePoint
	cancelPoll  func()
	requestMore func(n int)
	loopDone    chan struct{}
}

// NewBatchedAsynchronousSubscription builds a BatchedAsynchronousSubscription.
func NewBatchedAsynchronousSubscription(cfg BatchedConfig) *BatchedAsynchronousSubscription {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBatchSize <= 0 {
		panic("subscription: MaxBatchSize must be greater than 0")
	}
	pollBatchSize := cfg.PollBatchSize
	if pollBatchSize <= 0 {
		pollBatchSize = cfg.MaxBatchSize
	}

	s := &BatchedAsynchronousSubscription{
		durableSubscriptionRepository: cfg.DurableSubscriptionRepository,
		initialResumeFromAndIncluding: cfg.OnFirstSubscribeFromAndIncludingGlobalOrder,
		maxBatchSize:                  cfg.MaxBatchSize,
		maxLatency:                    cfg.MaxLatency,
		pollBatchSize:                 pollBatchSize,
		pollInterval:                  cfg.PollInterval,
		handler:                       cfg.Handler,
		metrics:                       cfg.Metrics,
	}
	s.abstractSubscription = newAbstractSubscription(logger, cfg.EventStore, cfg.AggregateType, cfg.SubscriberID, cfg.OnlyIncludeEventsForTenant, cfg.Observer, cfg.UnsubscribeCallback)
	return s
}

func (s *BatchedAsynchronousSubscription) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		s.logger.Debug("subscription was already started", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType)
		return nil
	}

	s.logger.Info("looking up subscription resume point", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType)
	resolveStart := time.Now()
	resumePoint, err := s.durableSubscriptionRepository.GetOrCreateResumePoint(ctx, s.subscriberID, s.aggregateType, s.initialResumeFromAndIncluding)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("resolve resume point: %w", err)
	}
	s.observer.ResolveResumePoint(resumePoint, s.initialResumeFromAndIncluding, s, time.Since(resolveStart))
	s.logger.Info("starting subscription", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType, "from_global_order", resumePoint.ResumeFromAndIncluding())

	events, requestMore, cancel, err := s.eventStore.PollEvents(ctx, s.aggregateType, resumePoint.ResumeFromAndIncluding(), eventstore.PollOptions{
		PollBatchSize: s.pollBatchSize,
		PollInterval:  s.pollInterval,
		Tenant:        s.onlyIncludeEventsForTenant,
		SubscriberID:  s.subscriberID,
	})
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("poll events: %w", err)
	}

	s.mu.Lock()
	s.resumePoint = resumePoint
	s.cancelPoll = cancel
	s.requestMore = requestMore
	s.loopDone = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx, events)
	s.Request(int64(s.pollBatchSize))
	return nil
}

func (s *BatchedAsynchronousSubscription) runLoop(ctx context.Context, events <-chan eventstore.PersistedEvent) {
	s.mu.Lock()
	done := s.loopDone
	s.mu.Unlock()
	defer close(done)

	var batch []eventstore.PersistedEvent
	var latencyTimer *time.Timer
	var latencyC <-chan time.Time

	stopTimer := func() {
		if latencyTimer != nil {
			latencyTimer.Stop()
			latencyTimer = nil
			latencyC = nil
		}
	}
	defer stopTimer()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			batch = append(batch, ev)
			if len(batch) == 1 {
				latencyTimer = time.NewTimer(s.maxLatency)
				latencyC = latencyTimer.C
			}
			if len(batch) >= s.maxBatchSize {
				stopTimer()
				batch = s.flush(ctx, batch)
			}
		case <-latencyC:
			stopTimer()
			batch = s.flush(ctx, batch)
		case <-ctx.Done():
			return
		}
	}
}

func (s *BatchedAsynchronousSubscription) flush(ctx context.Context, batch []eventstore.PersistedEvent) []eventstore.PersistedEvent {
	if len(batch) == 0 {
		return batch
	}
	last := batch[len(batch)-1]
	s.mu.Lock()
	resumePoint := s.resumePoint
	s.mu.Unlock()

	if err := s.handler.HandleBatch(ctx, batch); err != nil {
		for _, ev := range batch {
			s.onErrorHandlingEvent(ev, err)
			s.logger.Debug("requesting 1 event from the event store", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType, "global_event_order", ev.GlobalEventOrder)
			s.Request(1)
		}
		// The batch is skipped, not retried: advance past it the same
		// way a successful flush would.
		if resumePoint != nil {
			resumePoint.SetResumeFromAndIncluding(last.GlobalEventOrder + 1)
		}
		return batch[:0]
	}

	if resumePoint != nil {
		resumePoint.SetResumeFromAndIncluding(last.GlobalEventOrder + 1)
	}
	if s.metrics != nil {
		s.metrics.SubscriptionBatchDelivered(string(s.subscriberID), int64(last.GlobalEventOrder)+1)
	}
	s.Request(int64(len(batch)))
	return batch[:0]
}

func (s *BatchedAsynchronousSubscription) Request(n int64) {
	if !s.IsStarted() {
		s.logger.Warn("cannot request events as the subscriber isn't active", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType, "n", n)
		return
	}
	s.observer.RequestingEvents(n, s)
	s.mu.Lock()
	requestMore := s.requestMore
	s.mu.Unlock()
	if requestMore != nil {
		requestMore(int(n))
	}
}

func (s *BatchedAsynchronousSubscription) Stop(ctx context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}
	s.logger.Info("stopping subscription", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType)

	s.mu.Lock()
	cancel := s.cancelPoll
	done := s.loopDone
	resumePoint := s.resumePoint
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}

	// Allow in-flight batch handling to settle before persisting.
	time.Sleep(500 * time.Millisecond)

	if resumePoint != nil {
		s.logger.Debug("storing resume point", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType, "resume_from_and_including", resumePoint.ResumeFromAndIncluding())
		if err := s.durableSubscriptionRepository.SaveResumePoint(ctx, resumePoint); err != nil {
			return fmt.Errorf("save resume point: %w", err)
		}
	}
	s.logger.Info("stopped subscription", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType)
	return nil
}

func (s *BatchedAsynchronousSubscription) ResetFrom(ctx context.Context, subscribeFromAndIncluding eventstore.GlobalEventOrder, resetProcessor func(eventstore.GlobalEventOrder)) error {
	s.observer.ResettingFrom(subscribeFromAndIncluding, s)

	wasStarted := s.IsStarted()
	if wasStarted {
		s.logger.Info("resetting resume point and re-starting subscriber", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType, "from_global_order", subscribeFromAndIncluding)
		if err := s.Stop(ctx); err != nil {
			return err
		}
	}

	if err := s.overrideResumePoint(ctx, subscribeFromAndIncluding); err != nil {
		return err
	}
	resetProcessor(subscribeFromAndIncluding)

	if wasStarted {
		return s.Start(ctx)
	}
	return nil
}

func (s *BatchedAsynchronousSubscription) overrideResumePoint(ctx context.Context, order eventstore.GlobalEventOrder) error {
	s.mu.Lock()
	resumePoint := s.resumePoint
	s.mu.Unlock()
	if resumePoint == nil {
		resumePoint = NewResumePoint(s.subscriberID, s.aggregateType, order)
		s.mu.Lock()
		s.resumePoint = resumePoint
		s.mu.Unlock()
	} else {
		resumePoint.SetResumeFromAndIncluding(order)
	}

	s.logger.Info("overriding resume point", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType, "from_global_order", order)
	if err := s.durableSubscriptionRepository.SaveResumePoint(ctx, resumePoint); err != nil {
		return fmt.Errorf("save resume point: %w", err)
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("event handler panicked during OnResetFrom", "subscriber_id", s.subscriberID, "aggregate_type", s.aggregateType, "panic", r)
			}
		}()
		s.handler.OnResetFrom(s, order)
	}()
	return nil
}

func (s *BatchedAsynchronousSubscription) Unsubscribe() {
	s.unsubscribe(s)
}

func (s *BatchedAsynchronousSubscription) CurrentResumePoint() *ResumePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumePoint
}

func (s *BatchedAsynchronousSubscription) IsActive() bool        { return s.IsStarted() }
func (s *BatchedAsynchronousSubscription) IsExclusive() bool      { return false }
func (s *BatchedAsynchronousSubscription) IsInTransaction() bool { return false }

var _ EventStoreSubscription = (*BatchedAsynchronousSubscription)(nil)
