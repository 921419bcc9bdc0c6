package pubsub

import (
	"context"
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"kiosk/checkin"
	"kiosk/entity"
)

// LifecycleEvents publishes the outcome of kiosk badge requests. Publishing
// failures are logged only, a kiosk keeps working without the bus.
type LifecycleEvents struct {
	eventBus *cqrs.EventBus
}

func NewLifecycleEvents(eventBus *cqrs.EventBus) LifecycleEvents {
	if eventBus == nil {
		panic("eventBus is nil")
	}

	return LifecycleEvents{eventBus: eventBus}
}

func (e LifecycleEvents) BadgeIssued(ctx context.Context, badge entity.Badge) {
	err := e.eventBus.Publish(ctx, &entity.BadgeIssued{
		Header:   entity.NewEventHeaderWithIdempotencyKey("badge-issued-" + log.CorrelationIDFromContext(ctx)),
		TicketID: badge.TicketID,
		Name:     badge.Name,
		FileName: badge.FileName(),
	})
	if err != nil {
		log.FromContext(ctx).WithError(err).Error("Could not publish BadgeIssued")
	}
}

func (e LifecycleEvents) BadgeRequestFailed(ctx context.Context, ticketID string, reason error) {
	event := &entity.BadgeRequestFailed{
		Header:   entity.NewEventHeaderWithIdempotencyKey("badge-request-failed-" + log.CorrelationIDFromContext(ctx)),
		TicketID: ticketID,
		Reason:   checkin.ErrorMessage(reason),
	}

	var serverErr *entity.ServerError
	switch {
	case errors.As(reason, &serverErr):
		event.Status = serverErr.Status
	case errors.Is(reason, entity.ErrNotFound):
		event.Status = http.StatusNotFound
	case errors.Is(reason, entity.ErrForbidden):
		event.Status = http.StatusForbidden
	}

	if err := e.eventBus.Publish(ctx, event); err != nil {
		log.FromContext(ctx).WithError(err).Error("Could not publish BadgeRequestFailed")
	}
}
