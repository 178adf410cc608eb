package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzani/roledetect-go/internal/application/services"
	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/manager"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/performance"
)

func newRecorder(events behavior.Repository) (*services.RecorderService, *manager.Manager) {
	cache := manager.NewManager(clock, nil)
	tracker := performance.NewTracker(performance.DefaultTrackerConfig())
	recorder := services.NewRecorderService(cache, events, tracker, nil, clock, nil)
	return recorder, cache
}

func TestRecordRejectsMissingActor(t *testing.T) {
	recorder, _ := newRecorder(&fakeEventRepo{})

	result := recorder.Record(context.Background(), &behavior.Event{Type: behavior.EventPageView})
	assert.False(t, result.OK)
	assert.Equal(t, "missing_actor", result.Reason)
}

func TestRecordRejectsUnknownEventType(t *testing.T) {
	recorder, _ := newRecorder(&fakeEventRepo{})

	result := recorder.Record(context.Background(), &behavior.Event{
		SessionID: "s1",
		Type:      behavior.EventType("hover"),
	})
	assert.False(t, result.OK)
	assert.Equal(t, "invalid_event_type", result.Reason)
	assert.Zero(t, recorder.QueueDepth())
}

func TestRecordFillsDefaultsAndQueues(t *testing.T) {
	recorder, cache := newRecorder(&fakeEventRepo{})

	incoming := &behavior.Event{
		SessionID: "s1",
		Type:      behavior.EventPageView,
		Payload:   behavior.Payload{Path: "/buyer-landing"},
	}
	result := recorder.Record(context.Background(), incoming)
	require.True(t, result.OK)

	assert.NotEmpty(t, incoming.ID)
	assert.Equal(t, fixedNow, incoming.CreatedAt)
	assert.Equal(t, 1.0, incoming.Weight)
	assert.Equal(t, 1, recorder.QueueDepth())

	window, found := cache.BehaviorWindow("s1", fixedNow.Add(-time.Hour))
	require.True(t, found)
	require.Len(t, window, 1)
	assert.Equal(t, incoming.ID, window[0].ID)
}

func TestRecordPrefersIdentityAsActorKey(t *testing.T) {
	recorder, cache := newRecorder(&fakeEventRepo{})

	recorder.Record(context.Background(), &behavior.Event{
		IdentityID: "u1",
		SessionID:  "s1",
		Type:       behavior.EventPageView,
		Payload:    behavior.Payload{Path: "/buyer-landing"},
	})

	_, found := cache.BehaviorWindow("u1", fixedNow.Add(-time.Hour))
	assert.True(t, found)
	_, found = cache.BehaviorWindow("s1", fixedNow.Add(-time.Hour))
	assert.False(t, found)
}

func TestRecordBatchReportsPerEventOutcomes(t *testing.T) {
	recorder, _ := newRecorder(&fakeEventRepo{})

	results := recorder.RecordBatch(context.Background(), []*behavior.Event{
		{SessionID: "s1", Type: behavior.EventPageView, Payload: behavior.Payload{Path: "/buyer-landing"}},
		{SessionID: "s1", Type: behavior.EventType("hover")},
		{SessionID: "s1", Type: behavior.EventSearch, Payload: behavior.Payload{Query: "sell my business"}},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.True(t, results[2].OK)
	assert.Equal(t, 2, recorder.QueueDepth())
}

func TestPersistenceWorkerDrainsQueueOnShutdown(t *testing.T) {
	repo := &fakeEventRepo{}
	recorder, _ := newRecorder(repo)

	for i := 0; i < 3; i++ {
		recorder.Record(context.Background(), &behavior.Event{
			SessionID: "s1",
			Type:      behavior.EventPageView,
			Payload:   behavior.Payload{Path: "/buyer-landing"},
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	recorder.Start(ctx)
	cancel()
	recorder.Wait()

	assert.Len(t, repo.appended, 3)
	assert.Zero(t, recorder.QueueDepth())
}
