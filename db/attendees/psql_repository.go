package attendees

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"kiosk/entity"
	"kiosk/pubsub"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	if db == nil {
		panic("db is nil")
	}

	return &PostgresRepository{db: db}
}

// Store adds an attendee. Idempotent, an existing ticket is left untouched.
func (r *PostgresRepository) Store(ctx context.Context, attendee entity.Attendee) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO attendees (ticket_id, user_id, name, profession, checked_in, checked_in_at)
		VALUES (:ticket_id, :user_id, :name, :profession, :checked_in, :checked_in_at)
		ON CONFLICT (ticket_id) DO NOTHING
	`, attendee)
	if err != nil {
		return fmt.Errorf("could not store attendee %s: %w", attendee.TicketID, err)
	}

	return nil
}

func (r *PostgresRepository) GetByTicketID(ctx context.Context, ticketID string) (entity.Attendee, error) {
	var attendee entity.Attendee
	err := r.db.GetContext(ctx, &attendee, `
		SELECT ticket_id, user_id, name, profession, checked_in, checked_in_at
		FROM attendees
		WHERE ticket_id = $1
	`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Attendee{}, fmt.Errorf("attendee with ticket %s: %w", ticketID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Attendee{}, fmt.Errorf("could not get attendee %s: %w", ticketID, err)
	}

	return attendee, nil
}

// MarkCheckedIn checks the attendee in unless it already is. The first
// check-in writes AttendeeCheckedIn to the outbox in the same transaction.
func (r *PostgresRepository) MarkCheckedIn(
	ctx context.Context,
	attendee entity.Attendee,
	now time.Time,
) (updated entity.Attendee, alreadyCheckedIn bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Attendee{}, false, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			err = errors.Join(err, rollbackErr)
			return
		}
		err = tx.Commit()
	}()

	err = tx.GetContext(ctx, &updated, `
		UPDATE attendees
		SET checked_in = TRUE, checked_in_at = $2
		WHERE ticket_id = $1 AND checked_in = FALSE
		RETURNING ticket_id, user_id, name, profession, checked_in, checked_in_at
	`, attendee.TicketID, now.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.GetContext(ctx, &updated, `
			SELECT ticket_id, user_id, name, profession, checked_in, checked_in_at
			FROM attendees
			WHERE ticket_id = $1
		`, attendee.TicketID)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Attendee{}, false, fmt.Errorf("attendee with ticket %s: %w", attendee.TicketID, entity.ErrNotFound)
		}
		if err != nil {
			return entity.Attendee{}, false, fmt.Errorf("could not get attendee %s: %w", attendee.TicketID, err)
		}
		return updated, true, nil
	}
	if err != nil {
		return entity.Attendee{}, false, fmt.Errorf("could not check in attendee %s: %w", attendee.TicketID, err)
	}

	eventBus, err := pubsub.NewOutboxEventBus(ctx, tx)
	if err != nil {
		return entity.Attendee{}, false, err
	}

	err = eventBus.Publish(ctx, &entity.AttendeeCheckedIn{
		Header:      entity.NewEventHeader(),
		TicketID:    updated.TicketID,
		UserID:      updated.UserID,
		Name:        updated.Name,
		CheckedInAt: now.UTC(),
	})
	if err != nil {
		return entity.Attendee{}, false, fmt.Errorf("could not publish AttendeeCheckedIn: %w", err)
	}

	return updated, false, nil
}
