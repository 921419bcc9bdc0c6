package checkins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"

	"kiosk/entity"
)

// ReadModel projects check-in and kiosk events into read_model_checkins.
// Every event is applied at most once, keyed by its header id.
type ReadModel struct {
	db *sqlx.DB
}

func NewReadModel(db *sqlx.DB) ReadModel {
	if db == nil {
		panic("db is nil")
	}

	return ReadModel{db: db}
}

func (r ReadModel) OnAttendeeCheckedIn(ctx context.Context, event *entity.AttendeeCheckedIn) error {
	log.FromContext(ctx).Infof("CheckInReadModel: OnAttendeeCheckedIn: %s", event.TicketID)

	return r.applyOnce(ctx, event.Header.DeduplicationKey(), func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO read_model_checkins (ticket_id, user_id, name, checked_in_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (ticket_id) DO UPDATE SET
				user_id = EXCLUDED.user_id,
				name = EXCLUDED.name,
				checked_in_at = EXCLUDED.checked_in_at,
				updated_at = NOW()
		`, event.TicketID, event.UserID, event.Name, event.CheckedInAt)
		return err
	})
}

func (r ReadModel) OnBadgeIssued(ctx context.Context, event *entity.BadgeIssued) error {
	log.FromContext(ctx).Infof("CheckInReadModel: OnBadgeIssued: %s", event.TicketID)

	return r.applyOnce(ctx, event.Header.DeduplicationKey(), func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO read_model_checkins (ticket_id, name, badges_printed, updated_at)
			VALUES ($1, $2, 1, NOW())
			ON CONFLICT (ticket_id) DO UPDATE SET
				badges_printed = read_model_checkins.badges_printed + 1,
				last_error = '',
				updated_at = NOW()
		`, event.TicketID, event.Name)
		return err
	})
}

func (r ReadModel) OnBadgeRequestFailed(ctx context.Context, event *entity.BadgeRequestFailed) error {
	log.FromContext(ctx).Infof("CheckInReadModel: OnBadgeRequestFailed: %s", event.TicketID)

	return r.applyOnce(ctx, event.Header.DeduplicationKey(), func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO read_model_checkins (ticket_id, failed_scans, last_error, updated_at)
			VALUES ($1, 1, $2, NOW())
			ON CONFLICT (ticket_id) DO UPDATE SET
				failed_scans = read_model_checkins.failed_scans + 1,
				last_error = EXCLUDED.last_error,
				updated_at = NOW()
		`, event.TicketID, event.Reason)
		return err
	})
}

func (r ReadModel) FindAll(ctx context.Context) ([]entity.CheckIn, error) {
	var checkIns []entity.CheckIn
	err := r.db.SelectContext(ctx, &checkIns, `
		SELECT ticket_id, user_id, name, checked_in_at, badges_printed, failed_scans, last_error, updated_at
		FROM read_model_checkins
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("could not get check-in read models: %w", err)
	}

	return checkIns, nil
}

func (r ReadModel) Get(ctx context.Context, ticketID string) (entity.CheckIn, error) {
	var checkIn entity.CheckIn
	err := r.db.GetContext(ctx, &checkIn, `
		SELECT ticket_id, user_id, name, checked_in_at, badges_printed, failed_scans, last_error, updated_at
		FROM read_model_checkins
		WHERE ticket_id = $1
	`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.CheckIn{}, fmt.Errorf("check-in %s: %w", ticketID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.CheckIn{}, fmt.Errorf("could not get check-in read model: %w", err)
	}

	return checkIn, nil
}

func (r ReadModel) applyOnce(ctx context.Context, dedupKey string, apply func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			err = errors.Join(err, rollbackErr)
			return
		}
		err = tx.Commit()
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO processed_events (event_id) VALUES ($1)
		ON CONFLICT (event_id) DO NOTHING
	`, dedupKey)
	if err != nil {
		return fmt.Errorf("could not mark event %s as processed: %w", dedupKey, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		log.FromContext(ctx).WithField("dedup_key", dedupKey).Info("Event already applied, skipping")
		return nil
	}

	if err := apply(tx); err != nil {
		return fmt.Errorf("could not update check-in read model: %w", err)
	}

	return nil
}
