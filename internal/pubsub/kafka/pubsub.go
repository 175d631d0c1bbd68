package kafka

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/freelanceflow/freelanceflow/internal/config"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/pubsub"
)

type PubSub struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	config     *config.Configuration
	logger     *logger.Logger
}

// NewPubSub creates a new kafka-based pubsub. The subscriber side is only
// created when a consumer group is configured.
func NewPubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, ierr.NewError("kafka brokers not configured").
			WithHint("Set kafka.brokers when event.pubsub is kafka").
			Mark(ierr.ErrValidation)
	}

	saramaConfig := GetSaramaConfig(cfg)

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Kafka.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
		},
		watermill.NopLogger{},
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create kafka publisher").
			Mark(ierr.ErrSystem)
	}

	ps := &PubSub{
		publisher: publisher,
		config:    cfg,
		logger:    logger,
	}

	if cfg.Kafka.ConsumerGroup != "" {
		subscriber, err := kafka.NewSubscriber(
			kafka.SubscriberConfig{
				Brokers:               cfg.Kafka.Brokers,
				ConsumerGroup:         cfg.Kafka.ConsumerGroup,
				Unmarshaler:           kafka.DefaultMarshaler{},
				OverwriteSaramaConfig: saramaConfig,
			},
			watermill.NopLogger{},
		)
		if err != nil {
			_ = publisher.Close()
			return nil, ierr.WithError(err).
				WithHint("Failed to create kafka subscriber").
				Mark(ierr.ErrSystem)
		}
		ps.subscriber = subscriber
	}

	logger.Infow("kafka pubsub initialized",
		"brokers", cfg.Kafka.Brokers,
		"consumer_group", cfg.Kafka.ConsumerGroup,
	)
	return ps, nil
}

// Publish publishes a billing event
func (p *PubSub) Publish(_ context.Context, topic string, msg *message.Message) error {
	return p.publisher.Publish(topic, msg)
}

// Subscribe starts consuming billing events
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if p.subscriber == nil {
		return nil, ierr.NewError("kafka subscriber not configured").
			WithHint("Set kafka.consumer_group to consume events").
			Mark(ierr.ErrInvalidOperation)
	}
	return p.subscriber.Subscribe(ctx, topic)
}

// Close closes the pubsub
func (p *PubSub) Close() error {
	if p.subscriber != nil {
		if err := p.subscriber.Close(); err != nil {
			p.logger.Errorw("failed to close kafka subscriber", "error", err)
		}
	}
	return p.publisher.Close()
}
