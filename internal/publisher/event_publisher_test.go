package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/config"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/pubsub/memory"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_PublishesEnvelope(t *testing.T) {
	cfg := config.GetDefaultConfig()
	ps := memory.NewPubSub(logger.NewNoopLogger())
	defer ps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = types.SetFreelancerID(ctx, "fl_1")

	messages, err := ps.Subscribe(ctx, cfg.Event.Topic)
	require.NoError(t, err)

	event, err := NewEvent(ctx, types.EventInvoiceCreated, "inv_1", map[string]string{"invoice_number": "INV-2024-001"})
	require.NoError(t, err)

	pub := NewEventPublisher(cfg, ps, logger.NewNoopLogger())
	require.NoError(t, pub.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, "invoice.created", msg.Metadata.Get("event_name"))
		assert.Equal(t, "fl_1", msg.Metadata.Get("freelancer_id"))

		var got Event
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, "inv_1", got.EntityID)
		assert.JSONEq(t, `{"invoice_number":"INV-2024-001"}`, string(got.Payload))
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}
