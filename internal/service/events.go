package service

import (
	"context"

	"github.com/freelanceflow/freelanceflow/internal/publisher"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

// publishEvent emits a billing event once the owning transaction has committed.
// Delivery failures are logged and never undo the committed write.
func (p ServiceParams) publishEvent(ctx context.Context, name types.BillingEventName, entityID string, payload interface{}) {
	if p.EventPublisher == nil {
		return
	}

	event, err := publisher.NewEvent(ctx, name, entityID, payload)
	if err == nil {
		err = p.EventPublisher.Publish(ctx, event)
	}
	if err != nil {
		p.Logger.Errorw("failed to publish billing event",
			"event_name", name,
			"entity_id", entityID,
			"error", err,
		)
	}
}
