package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"weatherbot/events"
	"weatherbot/models"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	subject string
	msgID   string
	data    []byte
}

type fakeMessagePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
	notify   chan struct{}
}

func newFakeMessagePublisher() *fakeMessagePublisher {
	return &fakeMessagePublisher{notify: make(chan struct{}, 16)}
}

func (f *fakeMessagePublisher) Publish(ctx context.Context, subject, msgID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, publishedMessage{subject: subject, msgID: msgID, data: data})
	f.notify <- struct{}{}
	return nil
}

func TestEventSubjectMapper(t *testing.T) {
	m := NewEventSubjectMapper()

	assert.Equal(t, "weather.points_awarded", m.MapEventToSubject(events.PointsAwardedEvent{}))
	assert.Equal(t, "weather.summary.daily", m.MapEventToSubject(events.SummaryEvent{Kind: events.EventTypeDailySummary}))
	assert.Equal(t, "weather.summary.weekly", m.MapEventToSubject(events.SummaryEvent{Kind: events.EventTypeWeeklySummary}))
	assert.Equal(t, events.EventTypeUserLeft, m.MapSubjectToEventType("weather.users.left"))

	subjects := m.GetAllSubjects()
	assert.Len(t, subjects, len(ForwardedEventTypes))
	for _, eventType := range ForwardedEventTypes {
		assert.NotContains(t, m.MapEventToSubject(events.SummaryEvent{Kind: eventType}), "unknown")
	}
}

func TestNATSEventPublisher_ForwardWrapsEnvelope(t *testing.T) {
	fake := newFakeMessagePublisher()
	p := NewNATSEventPublisher(fake, nil)
	p.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	err := p.Forward(context.Background(), events.PointsAwardedEvent{
		UserID:     "u1",
		Points:     4,
		TotalAfter: 10,
		Breakdown:  models.Breakdown{models.ReasonThunderstorm: 4},
	})
	require.NoError(t, err)
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "weather.points_awarded", fake.messages[0].subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(fake.messages[0].data, &envelope))
	assert.Equal(t, "points_awarded", envelope.EventType)
	assert.Equal(t, "weatherbot", envelope.SourceService)
	assert.True(t, envelope.Timestamp.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
	_, err = uuid.Parse(envelope.EventID)
	assert.NoError(t, err)
	assert.Equal(t, envelope.EventID, fake.messages[0].msgID)

	var payload events.PointsAwardedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, 4, payload.Breakdown[models.ReasonThunderstorm])
}

func TestNATSEventPublisher_ForwardErrors(t *testing.T) {
	fake := newFakeMessagePublisher()
	p := NewNATSEventPublisher(fake, nil)

	fake.err = fmt.Errorf("failed to publish: %w", nats.ErrNoStreamResponse)
	assert.NoError(t, p.Forward(context.Background(), events.UserLeftEvent{UserID: "u1"}))

	fake.err = errors.New("nats: connection closed")
	assert.Error(t, p.Forward(context.Background(), events.UserLeftEvent{UserID: "u1"}))
}

func TestNATSEventPublisher_AttachForwardsBusEvents(t *testing.T) {
	fake := newFakeMessagePublisher()
	p := NewNATSEventPublisher(fake, nil)
	bus := events.NewBus()
	p.Attach(bus)

	bus.Publish(events.QuotaExhaustedEvent{Used: 1000, Limit: 1000})

	select {
	case <-fake.notify:
	case <-time.After(time.Second):
		t.Fatal("event was not forwarded")
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "weather.quota.exhausted", fake.messages[0].subject)
}

func TestMissingSubjects(t *testing.T) {
	existing := []string{"weather.points_awarded", "weather.users.joined"}
	wanted := NewEventSubjectMapper().GetAllSubjects()

	missing := missingSubjects(existing, wanted)
	assert.Len(t, missing, len(wanted)-2)
	assert.NotContains(t, missing, "weather.points_awarded")
	assert.Empty(t, missingSubjects(wanted, wanted))
}

func TestNATSClient_RequiresConnection(t *testing.T) {
	client := NewNATSClient("nats://localhost:4222").WithStreamLimits(StreamLimits{MaxAge: time.Hour})
	assert.False(t, client.IsConnected())
	assert.Error(t, client.Publish(context.Background(), "weather.points_awarded", "id", []byte("{}")))
	assert.Error(t, client.EnsureStream(DomainEventStream, nil))
	assert.NoError(t, client.Close())
}
