package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"

	"kiosk/entity"
)

type CheckInReadModel interface {
	OnAttendeeCheckedIn(ctx context.Context, event *entity.AttendeeCheckedIn) error
	OnBadgeIssued(ctx context.Context, event *entity.BadgeIssued) error
	OnBadgeRequestFailed(ctx context.Context, event *entity.BadgeRequestFailed) error
}

// NewWatermillRouter builds the badge server router: it projects check-in
// and kiosk events into the check-in read model.
func NewWatermillRouter(
	eventProcessorConfig cqrs.EventProcessorConfig,
	readModel CheckInReadModel,
	watermillLogger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	useMiddlewares(router, watermillLogger)

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create event processor: %w", err)
	}

	err = eventProcessor.AddHandlers(
		cqrs.NewEventHandler(
			"checkins_read_model.OnAttendeeCheckedIn",
			readModel.OnAttendeeCheckedIn,
		),
		cqrs.NewEventHandler(
			"checkins_read_model.OnBadgeIssued",
			readModel.OnBadgeIssued,
		),
		cqrs.NewEventHandler(
			"checkins_read_model.OnBadgeRequestFailed",
			readModel.OnBadgeRequestFailed,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("could not add handlers to event processor: %w", err)
	}

	return router, nil
}
