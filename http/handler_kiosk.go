package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"kiosk/checkin"
)

type stateResponse struct {
	State            checkin.State `json:"state"`
	TicketID         string        `json:"ticketId,omitempty"`
	Name             string        `json:"name,omitempty"`
	Profession       string        `json:"profession,omitempty"`
	AlreadyCheckedIn bool          `json:"alreadyCheckedIn,omitempty"`
	Error            string        `json:"error,omitempty"`
}

type scanRequest struct {
	Text string `json:"text"`
}

type scanResponse struct {
	Admitted bool `json:"admitted"`
}

func newStateResponse(snapshot checkin.Snapshot) stateResponse {
	response := stateResponse{
		State:    snapshot.State,
		TicketID: snapshot.TicketID,
		Error:    snapshot.Error,
	}
	if snapshot.Badge != nil {
		response.Name = snapshot.Badge.Name
		response.Profession = snapshot.Badge.Profession
		response.AlreadyCheckedIn = snapshot.Badge.AlreadyCheckedIn
	}

	return response
}

// GetState returns what the kiosk screen shows. The PDF itself is not part of it.
func (s *Server) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, newStateResponse(s.lifecycle.Snapshot()))
}

// GetStateStream pushes the screen state as server-sent events: the current
// state first, then every transition. A slow client skips to the latest state.
func (s *Server) GetStateStream(c echo.Context) error {
	updates := make(chan checkin.Snapshot, 1)
	unsubscribe := s.lifecycle.Subscribe(func(snapshot checkin.Snapshot) {
		for {
			select {
			case updates <- snapshot:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(http.StatusOK)

	if err := writeStateEvent(res, s.lifecycle.Snapshot()); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.shuttingDown:
			return nil
		case snapshot := <-updates:
			if err := writeStateEvent(res, snapshot); err != nil {
				return nil
			}
		}
	}
}

func writeStateEvent(res *echo.Response, snapshot checkin.Snapshot) error {
	payload, err := json.Marshal(newStateResponse(snapshot))
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(res, "event: state\ndata: %s\n\n", payload); err != nil {
		return err
	}
	res.Flush()

	return nil
}

func (s *Server) PostScan(c echo.Context) error {
	var request scanRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, scanResponse{Admitted: s.lifecycle.HandleScan(request.Text)})
}

func (s *Server) PostAccept(c echo.Context) error {
	err := s.lifecycle.Accept(c.Request().Context())
	if errors.Is(err, checkin.ErrNotConfirming) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) PostDismiss(c echo.Context) error {
	s.lifecycle.Dismiss()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) PostReset(c echo.Context) error {
	s.lifecycle.Reset()
	return c.NoContent(http.StatusNoContent)
}
