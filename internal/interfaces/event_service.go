package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventJobCreated        EventType = "job_created"
	EventJobStarted        EventType = "job_started"
	EventStageStarted      EventType = "stage_started"
	EventStageCompleted    EventType = "stage_completed"
	EventStageFailed       EventType = "stage_failed"
	EventJobCompleted      EventType = "job_completed"
	EventJobFailed         EventType = "job_failed"
	EventJobTimedOut       EventType = "job_timed_out"
	EventJobRetryScheduled EventType = "job_retry_scheduled"
	EventSweepCompleted    EventType = "sweep_completed"
)

// AllEventTypes lists every lifecycle event in publication order
func AllEventTypes() []EventType {
	return []EventType{
		EventJobCreated,
		EventJobStarted,
		EventStageStarted,
		EventStageCompleted,
		EventStageFailed,
		EventJobCompleted,
		EventJobFailed,
		EventJobTimedOut,
		EventJobRetryScheduled,
		EventSweepCompleted,
	}
}

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
