package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidResponse = errors.New("invalid response")
)

// ServerError is returned for non-2xx badge responses other than 404 and 403.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server error %d", e.Status)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Detail)
}

// NetworkError wraps a transport failure that was not caused by cancellation.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
