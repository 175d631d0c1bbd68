package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/freelanceflow/freelanceflow/internal/config"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/pubsub"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

// Event is the envelope published for every billing event
type Event struct {
	ID           string                 `json:"id"`
	EventName    types.BillingEventName `json:"event_name"`
	FreelancerID string                 `json:"freelancer_id"`
	EntityID     string                 `json:"entity_id"`
	Timestamp    time.Time              `json:"timestamp"`
	Payload      json.RawMessage        `json:"payload,omitempty"`
}

// NewEvent builds an event for the freelancer in ctx with payload marshalled as JSON
func NewEvent(ctx context.Context, name types.BillingEventName, entityID string, payload interface{}) (*Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to marshal event payload").
				Mark(ierr.ErrSystem)
		}
		raw = b
	}

	return &Event{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		EventName:    name,
		FreelancerID: types.GetFreelancerID(ctx),
		EntityID:     entityID,
		Timestamp:    time.Now().UTC(),
		Payload:      raw,
	}, nil
}

// EventPublisher publishes billing events after the owning transaction has committed
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

type eventPublisher struct {
	pubsub pubsub.Publisher
	topic  string
	logger *logger.Logger
}

// NewEventPublisher creates a new publisher on the configured topic
func NewEventPublisher(cfg *config.Configuration, ps pubsub.PubSub, logger *logger.Logger) EventPublisher {
	return &eventPublisher{
		pubsub: ps,
		topic:  cfg.Event.Topic,
		logger: logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal event").
			Mark(ierr.ErrSystem)
	}

	p.logger.Debugw("publishing event",
		"event_id", event.ID,
		"event_name", event.EventName,
		"entity_id", event.EntityID,
		"topic", p.topic,
	)

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_name", string(event.EventName))
	msg.Metadata.Set("freelancer_id", event.FreelancerID)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		msg.Metadata.Set("request_id", requestID)
	}

	if err := p.pubsub.Publish(ctx, p.topic, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to publish event").
			WithReportableDetails(map[string]any{
				"event_name": event.EventName,
			}).
			Mark(ierr.ErrSystem)
	}
	return nil
}
