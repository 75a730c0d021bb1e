package infrastructure

import (
	"fmt"

	"weatherbot/events"
)

// DomainEventStream is the JetStream stream carrying every forwarded event
const DomainEventStream = "weather_events"

var subjectsByType = map[events.EventType]string{
	events.EventTypePointsAwarded:  "weather.points_awarded",
	events.EventTypeUserJoined:     "weather.users.joined",
	events.EventTypeUserLeft:       "weather.users.left",
	events.EventTypeAdminOverride:  "weather.admin.override",
	events.EventTypeQuotaExhausted: "weather.quota.exhausted",
	events.EventTypeDailySummary:   "weather.summary.daily",
	events.EventTypeWeeklySummary:  "weather.summary.weekly",
}

// ForwardedEventTypes lists the event types sent to NATS, in a stable order
var ForwardedEventTypes = []events.EventType{
	events.EventTypePointsAwarded,
	events.EventTypeUserJoined,
	events.EventTypeUserLeft,
	events.EventTypeAdminOverride,
	events.EventTypeQuotaExhausted,
	events.EventTypeDailySummary,
	events.EventTypeWeeklySummary,
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjectsByType[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("weather.unknown.%s", event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range subjectsByType {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	subjects := make([]string, 0, len(ForwardedEventTypes))
	for _, eventType := range ForwardedEventTypes {
		subjects = append(subjects, subjectsByType[eventType])
	}
	return subjects
}
