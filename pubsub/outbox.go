package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	watermillSQL "github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
)

const outboxTopic = "events_to_forward"

// NewOutboxEventBus returns an event bus that writes events into the outbox
// table inside tx. They reach redis only after tx commits and the forwarder
// picks them up.
func NewOutboxEventBus(ctx context.Context, tx *sqlx.Tx) (*cqrs.EventBus, error) {
	watermillLogger := log.NewWatermill(log.FromContext(ctx))

	sqlPublisher, err := watermillSQL.NewPublisher(
		tx,
		watermillSQL.PublisherConfig{
			SchemaAdapter: watermillSQL.DefaultPostgreSQLSchema{},
		},
		watermillLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create outbox publisher: %w", err)
	}

	var publisher message.Publisher
	publisher = forwarder.NewPublisher(sqlPublisher, forwarder.PublisherConfig{
		ForwarderTopic: outboxTopic,
	})
	publisher = log.CorrelationPublisherDecorator{Publisher: publisher}

	return NewEventBus(publisher)
}

func NewPostgresSubscriber(db *sqlx.DB, watermillLogger watermill.LoggerAdapter) (*watermillSQL.Subscriber, error) {
	return watermillSQL.NewSubscriber(db, watermillSQL.SubscriberConfig{
		SchemaAdapter:    watermillSQL.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   watermillSQL.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
	}, watermillLogger)
}

// InitializeOutboxSchema creates the outbox tables, so events can be written
// before the forwarder subscribes for the first time.
func InitializeOutboxSchema(db *sqlx.DB, watermillLogger watermill.LoggerAdapter) error {
	sub, err := NewPostgresSubscriber(db, watermillLogger)
	if err != nil {
		return fmt.Errorf("could not create outbox subscriber: %w", err)
	}
	defer sub.Close()

	if err := sub.SubscribeInitialize(outboxTopic); err != nil {
		return fmt.Errorf("could not initialize outbox schema: %w", err)
	}

	return nil
}

// NewOutboxForwarder moves events from the outbox table to redis.
func NewOutboxForwarder(
	db *sqlx.DB,
	redisPublisher message.Publisher,
	watermillLogger watermill.LoggerAdapter,
) (*forwarder.Forwarder, error) {
	sub, err := NewPostgresSubscriber(db, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create outbox subscriber: %w", err)
	}

	fwd, err := forwarder.NewForwarder(sub, redisPublisher, watermillLogger, forwarder.Config{
		ForwarderTopic: outboxTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create outbox forwarder: %w", err)
	}

	return fwd, nil
}
