package entity

import "time"

type Attendee struct {
	UserID      string     `json:"userId" db:"user_id"`
	TicketID    string     `json:"ticketId" db:"ticket_id"`
	Name        string     `json:"name" db:"name"`
	Profession  string     `json:"profession" db:"profession"`
	CheckedIn   bool       `json:"checkedIn" db:"checked_in"`
	CheckedInAt *time.Time `json:"checkedInAt,omitempty" db:"checked_in_at"`
}

// CheckIn is a row of the check-in read model.
type CheckIn struct {
	TicketID      string     `json:"ticket_id" db:"ticket_id"`
	UserID        string     `json:"user_id" db:"user_id"`
	Name          string     `json:"name" db:"name"`
	CheckedInAt   *time.Time `json:"checked_in_at,omitempty" db:"checked_in_at"`
	BadgesPrinted int        `json:"badges_printed" db:"badges_printed"`
	FailedScans   int        `json:"failed_scans" db:"failed_scans"`
	LastError     string     `json:"last_error,omitempty" db:"last_error"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
