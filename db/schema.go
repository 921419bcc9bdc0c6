package db

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"

	"kiosk/pubsub"
)

func InitializeDatabaseSchema(db *sqlx.DB) error {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))
	if err := pubsub.InitializeOutboxSchema(db, watermillLogger); err != nil {
		return err
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS attendees (
			ticket_id VARCHAR(255) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			name VARCHAR(255) NOT NULL,
			profession VARCHAR(255) NOT NULL DEFAULT '',
			checked_in BOOLEAN NOT NULL DEFAULT FALSE,
			checked_in_at TIMESTAMP WITH TIME ZONE
		);

		CREATE TABLE IF NOT EXISTS read_model_checkins (
			ticket_id VARCHAR(255) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			name VARCHAR(255) NOT NULL DEFAULT '',
			checked_in_at TIMESTAMP WITH TIME ZONE,
			badges_printed INT NOT NULL DEFAULT 0,
			failed_scans INT NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS processed_events (
			event_id VARCHAR(255) PRIMARY KEY,
			processed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
	`)
	return err
}
