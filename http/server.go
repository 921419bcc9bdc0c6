package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"kiosk/checkin"
)

type Lifecycle interface {
	HandleScan(raw string) bool
	Accept(ctx context.Context) error
	Dismiss()
	Reset()
	Snapshot() checkin.Snapshot
	Subscribe(fn func(checkin.Snapshot)) (unsubscribe func())
}

type Server struct {
	addr      string
	e         *echo.Echo
	lifecycle Lifecycle

	// closed on shutdown, ends open state streams
	shuttingDown chan struct{}
}

func NewServer(addr string, lifecycle Lifecycle) *Server {
	if lifecycle == nil {
		panic("lifecycle is nil")
	}

	e := echoHTTP.NewEcho()
	e.Use(otelecho.Middleware("kiosk"))

	server := &Server{
		addr:         addr,
		e:            e,
		lifecycle:    lifecycle,
		shuttingDown: make(chan struct{}),
	}

	var shutdownOnce sync.Once
	e.Server.RegisterOnShutdown(func() {
		shutdownOnce.Do(func() { close(server.shuttingDown) })
	})

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/state", server.GetState)
	e.GET("/state/stream", server.GetStateStream)
	e.POST("/scans", server.PostScan)
	e.POST("/accept", server.PostAccept)
	e.POST("/dismiss", server.PostDismiss)
	e.POST("/reset", server.PostReset)

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
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] kiosk server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
