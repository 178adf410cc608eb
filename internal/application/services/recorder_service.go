package services

import (
	"context"
	"sync"
	"time"

	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/interfaces"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/metrics"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/performance"
	"github.com/arzani/roledetect-go/internal/infrastructure/security"
	"github.com/arzani/roledetect-go/pkg/config"
)

const persistTimeout = 5 * time.Second

// WriteResult reports the outcome of one event ingestion. A rejected
// event carries the reason; accepted events are visible to scoring
// immediately even if durable persistence is still pending.
type WriteResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// RecorderService ingests behavior events into the in-memory
// accumulator and queues them for durable persistence. Ingestion never
// blocks on the database; a full queue drops the durable copy.
type RecorderService struct {
	cache       interfaces.Cache
	events      behavior.Repository
	perfTracker *performance.Tracker
	metrics     *metrics.Collector
	logger      *logging.ChanneledLogger
	now         func() time.Time

	queue chan *behavior.Event
	wg    sync.WaitGroup
}

// NewRecorderService creates a new behavior recorder with its dependencies.
func NewRecorderService(cache interfaces.Cache, events behavior.Repository, perfTracker *performance.Tracker, collector *metrics.Collector, clock func() time.Time, logger *logging.ChanneledLogger) *RecorderService {
	if clock == nil {
		clock = time.Now
	}
	return &RecorderService{
		cache:       cache,
		events:      events,
		perfTracker: perfTracker,
		metrics:     collector,
		logger:      logger,
		now:         clock,
		queue:       make(chan *behavior.Event, config.WriteQueueSize),
	}
}

// Record validates and ingests a single event. The event is appended to
// the actor's bounded log synchronously and handed to the persistence
// worker without blocking.
func (s *RecorderService) Record(ctx context.Context, event *behavior.Event) *WriteResult {
	marker := s.perfTracker.StartOperation("behavior.record", actorKey(event.IdentityID, event.SessionID))
	defer marker.Complete()

	if event.IdentityID == "" && event.SessionID == "" {
		marker.SetSuccess(false)
		return &WriteResult{OK: false, Reason: "missing_actor"}
	}
	if !event.Type.IsValid() {
		marker.SetSuccess(false)
		if s.logger != nil {
			s.logger.Behavior().Warn("Rejected event with unknown type", "type", string(event.Type), "sessionId", event.SessionID)
		}
		return &WriteResult{OK: false, Reason: "invalid_event_type"}
	}

	if event.ID == "" {
		event.ID = security.GenerateULID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	if event.Weight <= 0 {
		event.Weight = 1.0
	}

	s.cache.AppendBehavior(actorKey(event.IdentityID, event.SessionID), event)

	if s.metrics != nil {
		s.metrics.RecordEvent(string(event.Type))
	}

	select {
	case s.queue <- event:
	default:
		// Queue saturated. The in-memory log already has the event,
		// only the durable copy is lost.
		if s.logger != nil {
			s.logger.Behavior().Warn("Persistence queue full, dropping durable copy", "eventId", event.ID, "type", string(event.Type))
		}
	}

	if s.metrics != nil {
		s.metrics.SetQueueDepth(len(s.queue))
	}

	marker.SetSuccess(true)
	marker.AddMetadata("eventType", string(event.Type))
	return &WriteResult{OK: true}
}

// RecordBatch ingests a batch of events and reports per-event outcomes.
func (s *RecorderService) RecordBatch(ctx context.Context, events []*behavior.Event) []*WriteResult {
	results := make([]*WriteResult, len(events))
	for i, event := range events {
		results[i] = s.Record(ctx, event)
	}
	return results
}

// QueueDepth returns the number of events awaiting durable persistence.
func (s *RecorderService) QueueDepth() int {
	return len(s.queue)
}

// Start launches the background persistence worker. It drains the queue
// until the context is cancelled, then flushes whatever remains.
func (s *RecorderService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.logger != nil {
			s.logger.Behavior().Info("Behavior persistence worker started", "queueSize", cap(s.queue))
		}
		for {
			select {
			case <-ctx.Done():
				s.drain()
				if s.logger != nil {
					s.logger.Behavior().Info("Behavior persistence worker stopped")
				}
				return
			case event := <-s.queue:
				s.persist(event)
			}
		}
	}()
}

// Wait blocks until the persistence worker has exited.
func (s *RecorderService) Wait() {
	s.wg.Wait()
}

func (s *RecorderService) drain() {
	for {
		select {
		case event := <-s.queue:
			s.persist(event)
		default:
			return
		}
	}
}

func (s *RecorderService) persist(event *behavior.Event) {
	marker := s.perfTracker.StartOperation("behavior.persist", actorKey(event.IdentityID, event.SessionID))
	defer marker.Complete()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.events.Append(ctx, event); err != nil {
		marker.SetError(err)
		if s.logger != nil {
			s.logger.LogError(logging.ChannelBehavior, "persist_event", err, map[string]any{"eventId": event.ID, "type": string(event.Type)})
		}
		return
	}
	marker.SetSuccess(true)

	if s.metrics != nil {
		s.metrics.SetQueueDepth(len(s.queue))
	}
}

// actorKey picks the identity as the accumulator key when known,
// falling back to the session for anonymous visitors.
func actorKey(identityID, sessionID string) string {
	if identityID != "" {
		return identityID
	}
	return sessionID
}
