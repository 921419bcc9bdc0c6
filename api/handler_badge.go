package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"kiosk/badgepdf"
	"kiosk/entity"
	"kiosk/metrics"
)

type ticketRequest struct {
	TicketID string `json:"ticketId"`
}

type pdfRequest struct {
	ID string `json:"id"`
}

type badgeResponse struct {
	OK bool `json:"ok"`
	entity.Badge
}

type pdfResponse struct {
	ContentType string `json:"contentType"`
	PDFBase64   string `json:"pdfBase64"`
}

type healthResponse struct {
	OK bool `json:"ok"`
	StoreInfo
}

func (s *Server) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{OK: true, StoreInfo: s.storeInfo})
}

func (s *Server) PostBadge(c echo.Context) error {
	ticketID, err := bindTicketID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	attendee, err := s.attendees.GetByTicketID(ctx, ticketID)
	if err != nil {
		return storeError(err)
	}

	badge, err := s.renderBadge(ticketID, attendee, formatCheckedInAt(attendee.CheckedInAt, ""))
	if err != nil {
		return err
	}
	metrics.BadgesRendered.WithLabelValues("badge").Inc()

	return c.JSON(http.StatusOK, badgeResponse{OK: true, Badge: badge})
}

func (s *Server) PostCheckIn(c echo.Context) error {
	ticketID, err := bindTicketID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	now := s.now().UTC()

	attendee, err := s.attendees.GetByTicketID(ctx, ticketID)
	if err != nil {
		return storeError(err)
	}

	if attendee.UserID == "" {
		return echo.NewHTTPError(http.StatusInternalServerError, "attendee has no userId")
	}

	updated, alreadyCheckedIn, err := s.attendees.MarkCheckedIn(ctx, attendee, now)
	if err != nil {
		return storeError(err)
	}

	checkedInAt := updated.CheckedInAt
	if checkedInAt == nil {
		checkedInAt = attendee.CheckedInAt
	}

	badge, err := s.renderBadge(ticketID, attendee, formatCheckedInAt(checkedInAt, now.Format(time.RFC3339)))
	if err != nil {
		return err
	}
	badge.CheckedIn = true
	badge.AlreadyCheckedIn = alreadyCheckedIn
	metrics.BadgesRendered.WithLabelValues("checkin").Inc()

	return c.JSON(http.StatusOK, badgeResponse{OK: true, Badge: badge})
}

// PostPDF renders a placeholder badge, used to check the printer layout.
func (s *Server) PostPDF(c echo.Context) error {
	var request pdfRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	pdfBase64, err := s.renderer.Render(badgepdf.Details{
		TicketID:    request.ID,
		Name:        "DUMMY NAME",
		Profession:  "DUMMY PROFESSION",
		CheckedInAt: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	metrics.BadgesRendered.WithLabelValues("pdf").Inc()

	return c.JSON(http.StatusOK, pdfResponse{ContentType: badgepdf.ContentType, PDFBase64: pdfBase64})
}

func (s *Server) renderBadge(ticketID string, attendee entity.Attendee, checkedInAt string) (entity.Badge, error) {
	badge := entity.Badge{
		TicketID:    ticketID,
		UserID:      orDefault(attendee.UserID, "UNKNOWN"),
		Name:        orDefault(attendee.Name, "UNKNOWN"),
		Profession:  orDefault(attendee.Profession, "N/A"),
		CheckedIn:   attendee.CheckedIn,
		CheckedInAt: checkedInAt,
		ContentType: badgepdf.ContentType,
	}

	pdfBase64, err := s.renderer.Render(badgepdf.Details{
		TicketID:    ticketID,
		Name:        badge.Name,
		Profession:  badge.Profession,
		CheckedInAt: checkedInAt,
	})
	if err != nil {
		return entity.Badge{}, err
	}
	badge.PDFBase64 = pdfBase64

	return badge, nil
}

func bindTicketID(c echo.Context) (string, error) {
	var request ticketRequest
	if err := c.Bind(&request); err != nil {
		return "", err
	}

	ticketID := strings.TrimSpace(request.TicketID)
	if ticketID == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "ticketId is required")
	}

	return ticketID, nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "ticketId not found")
	case errors.Is(err, entity.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
}

func formatCheckedInAt(checkedInAt *time.Time, fallback string) string {
	if checkedInAt == nil {
		return orDefault(fallback, "N/A")
	}
	return checkedInAt.UTC().Format(time.RFC3339)
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value == "" {
		return fallback
	}
	return value
}
