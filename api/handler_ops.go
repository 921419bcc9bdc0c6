package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"kiosk/entity"
)

func (s *Server) GetOpsCheckIns(c echo.Context) error {
	checkIns, err := s.readModel.FindAll(c.Request().Context())
	if err != nil {
		return err
	}

	if checkIns == nil {
		checkIns = []entity.CheckIn{}
	}

	return c.JSON(http.StatusOK, checkIns)
}

func (s *Server) GetOpsCheckIn(c echo.Context) error {
	checkIn, err := s.readModel.Get(c.Request().Context(), c.Param("ticket_id"))
	if errors.Is(err, entity.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "check-in not found")
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, checkIn)
}
