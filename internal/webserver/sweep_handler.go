package webserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/quotagate/internal/sweeper"
	"github.com/mdouchement/quotagate/internal/webserver/weberror"
)

type sweep struct {
	logger  logger.Logger
	sweeper *sweeper.Sweeper
}

// Trigger runs one sweep pass on demand, the HTTP analog of the cron task.
func (h *sweep) Trigger(c echo.Context) error {
	c.Set("handler_method", "sweep.Trigger")

	result, err := h.sweeper.Sweep(time.Now())
	if err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"ok":         true,
		"deleted":    result.Deleted,
		"freedBytes": result.FreedBytes,
	})
}
