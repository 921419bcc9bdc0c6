package checkin

import (
	"context"
	"errors"
	"fmt"

	"kiosk/entity"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateConfirm State = "confirm"
	StateError   State = "error"
)

// Snapshot is what the kiosk screen renders. Badge is set only in StateConfirm,
// Error and Err only in StateError.
type Snapshot struct {
	State    State
	TicketID string
	Badge    *entity.Badge
	Error    string
	Err      error
}

// ErrorMessage turns a badge request failure into the text shown to the user.
func ErrorMessage(err error) string {
	var serverErr *entity.ServerError

	switch {
	case errors.Is(err, entity.ErrNotFound):
		return "Ticket not found"
	case errors.Is(err, entity.ErrForbidden):
		return "Not permitted to view this badge"
	case errors.As(err, &serverErr):
		if serverErr.Detail != "" {
			return fmt.Sprintf("Server error %d: %s", serverErr.Status, serverErr.Detail)
		}
		return fmt.Sprintf("Server error %d", serverErr.Status)
	case errors.Is(err, entity.ErrInvalidResponse):
		return "Invalid server response (no PDF)"
	default:
		return "Network error while fetching the badge"
	}
}

func resultLabel(err error) string {
	var serverErr *entity.ServerError
	var networkErr *entity.NetworkError

	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, entity.ErrNotFound):
		return "not_found"
	case errors.Is(err, entity.ErrForbidden):
		return "forbidden"
	case errors.As(err, &serverErr):
		return "server_error"
	case errors.Is(err, entity.ErrInvalidResponse):
		return "invalid_response"
	case errors.As(err, &networkErr), errors.Is(err, context.DeadlineExceeded):
		return "network_error"
	default:
		return "error"
	}
}
