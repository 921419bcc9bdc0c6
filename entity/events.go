package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

// DeduplicationKey identifies the fact behind the event. Republishing the same
// fact under a new header id keeps the key.
func (h EventHeader) DeduplicationKey() string {
	if h.IdempotencyKey != "" {
		return h.IdempotencyKey
	}
	return h.ID
}

type AttendeeCheckedIn struct {
	Header      EventHeader `json:"header"`
	TicketID    string      `json:"ticket_id"`
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	CheckedInAt time.Time   `json:"checked_in_at"`
}

type BadgeIssued struct {
	Header   EventHeader `json:"header"`
	TicketID string      `json:"ticket_id"`
	Name     string      `json:"name"`
	FileName string      `json:"file_name"`
}

type BadgeRequestFailed struct {
	Header   EventHeader `json:"header"`
	TicketID string      `json:"ticket_id"`
	Reason   string      `json:"reason"`
	Status   int         `json:"status,omitempty"`
}
