package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"weatherbot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionalBus_FlushDeliversToMainBus(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	received := make(chan PointsAwardedEvent, 1)
	mainBus.Subscribe(EventTypePointsAwarded, func(ctx context.Context, event Event) {
		if awarded, ok := event.(PointsAwardedEvent); ok {
			received <- awarded
		}
	})

	testEvent := PointsAwardedEvent{
		UserID:     "user-1",
		Points:     4,
		TotalAfter: 12,
		Breakdown:  models.Breakdown{models.ReasonExtremeHeat: 3, models.ReasonLowHumidity: 1},
	}
	transactionalBus.Publish(testEvent)

	// Nothing reaches subscribers before commit
	select {
	case <-received:
		t.Fatal("event delivered before flush")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, transactionalBus.Flush(context.Background()))

	select {
	case got := <-received:
		assert.Equal(t, testEvent.UserID, got.UserID)
		assert.Equal(t, testEvent.TotalAfter, got.TotalAfter)
		assert.Equal(t, 4, got.Breakdown.Total())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not received within timeout")
	}
}

func TestTransactionalBus_DiscardDropsEvents(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	var mu sync.Mutex
	count := 0
	mainBus.Subscribe(EventTypeUserJoined, func(ctx context.Context, event Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	transactionalBus.Publish(UserJoinedEvent{UserID: "user-1"})
	transactionalBus.Discard()
	require.NoError(t, transactionalBus.Flush(context.Background()))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}

func TestBus_SubscribeMany(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(2)
	seen := make(chan EventType, 2)
	bus.SubscribeMany([]EventType{EventTypeDailySummary, EventTypeWeeklySummary}, func(ctx context.Context, event Event) {
		defer wg.Done()
		seen <- event.Type()
	})

	bus.Publish(SummaryEvent{Kind: EventTypeDailySummary})
	bus.Publish(SummaryEvent{Kind: EventTypeWeeklySummary})
	wg.Wait()
	close(seen)

	var types []EventType
	for et := range seen {
		types = append(types, et)
	}
	assert.ElementsMatch(t, []EventType{EventTypeDailySummary, EventTypeWeeklySummary}, types)
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewBus()

	done := make(chan struct{})
	bus.Subscribe(EventTypeUserLeft, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeUserLeft, func(ctx context.Context, event Event) {
		close(done)
	})

	bus.Publish(UserLeftEvent{UserID: "user-1"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler did not run")
	}
}

func TestBus_DrainWaitsForHandlers(t *testing.T) {
	bus := NewBus()

	release := make(chan struct{})
	var finished bool
	var mu sync.Mutex
	bus.Subscribe(EventTypePointsAwarded, func(ctx context.Context, event Event) {
		<-release
		mu.Lock()
		finished = true
		mu.Unlock()
	})
	assert.True(t, bus.HasSubscribers(EventTypePointsAwarded))
	assert.False(t, bus.HasSubscribers(EventTypeQuotaExhausted))

	bus.Publish(PointsAwardedEvent{UserID: "user-1", Points: 2})

	// Blocked handler keeps Drain waiting until the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Drain(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, bus.Drain(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, finished)
}

func TestTransactionalBus_PendingCount(t *testing.T) {
	transactionalBus := NewTransactionalBus(NewBus())
	transactionalBus.Publish(UserJoinedEvent{UserID: "user-1"})
	transactionalBus.Publish(UserLeftEvent{UserID: "user-1"})
	assert.Equal(t, 2, transactionalBus.Pending())

	require.NoError(t, transactionalBus.Flush(context.Background()))
	assert.Equal(t, 0, transactionalBus.Pending())
}
