package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"kiosk/badgepdf"
	"kiosk/entity"
)

type AttendeeRepository interface {
	GetByTicketID(ctx context.Context, ticketID string) (entity.Attendee, error)
	MarkCheckedIn(ctx context.Context, attendee entity.Attendee, now time.Time) (entity.Attendee, bool, error)
}

type BadgeRenderer interface {
	Render(details badgepdf.Details) (string, error)
}

type CheckInReadModel interface {
	FindAll(ctx context.Context) ([]entity.CheckIn, error)
	Get(ctx context.Context, ticketID string) (entity.CheckIn, error)
}

// StoreInfo describes the attendee store in /health.
type StoreInfo struct {
	Store  string `json:"store"`
	Table  string `json:"table,omitempty"`
	GSI    string `json:"gsi,omitempty"`
	Region string `json:"region,omitempty"`
}

type Server struct {
	addr      string
	e         *echo.Echo
	attendees AttendeeRepository
	renderer  BadgeRenderer
	readModel CheckInReadModel
	storeInfo StoreInfo
	now       func() time.Time
}

// NewServer wires the badge backend routes. readModel may be nil, the ops
// endpoints are not served then.
func NewServer(
	addr string,
	attendees AttendeeRepository,
	renderer BadgeRenderer,
	readModel CheckInReadModel,
	storeInfo StoreInfo,
) *Server {
	if attendees == nil {
		panic("attendees is nil")
	}
	if renderer == nil {
		panic("renderer is nil")
	}

	e := echoHTTP.NewEcho()
	e.HTTPErrorHandler = detailErrorHandler
	e.Use(otelecho.Middleware("badge-server"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))

	server := &Server{
		addr:      addr,
		e:         e,
		attendees: attendees,
		renderer:  renderer,
		readModel: readModel,
		storeInfo: storeInfo,
		now:       time.Now,
	}

	e.GET("/health", server.GetHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/badge", server.PostBadge)
	e.POST("/checkin", server.PostCheckIn)
	e.POST("/pdf", server.PostPDF)

	if readModel != nil {
		e.GET("/ops/checkins", server.GetOpsCheckIns)
		e.GET("/ops/checkins/:ticket_id", server.GetOpsCheckIn)
	}

	return server
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.e.Shutdown(shutdownCtx)
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] badge server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// detailErrorHandler answers every error as {"detail": "..."}.
func detailErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := err.Error()

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		detail = fmt.Sprint(httpErr.Message)
	}

	logger := log.FromContext(c.Request().Context()).WithError(err).WithField("status", code)
	if code >= http.StatusInternalServerError {
		logger.Error("Request failed")
	} else {
		logger.Info("Request rejected")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Detail: detail})
	}
	if err != nil {
		log.FromContext(c.Request().Context()).WithError(err).Error("Could not write error response")
	}
}
