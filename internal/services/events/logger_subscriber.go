package events

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		if payload, ok := event.Payload.(map[string]interface{}); ok {
			for _, key := range []string{"job_id", "stage", "status"} {
				if v, ok := payload[key].(string); ok && v != "" {
					logEvent = logEvent.Str(key, v)
				}
			}
		}

		logEvent.Msg("Event published")
		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all lifecycle events
func SubscribeLoggerToAllEvents(eventService *Service, logger arbor.ILogger) error {
	if err := eventService.SubscribeAll(NewLoggerSubscriber(logger)); err != nil {
		return err
	}

	logger.Info().
		Int("event_type_count", len(interfaces.AllEventTypes())).
		Msg("Logger subscribed to all event types")
	return nil
}
