package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/quotagate/internal/webserver/weberror"
)

// Authenticate guards the sweep trigger with a shared token passed as the
// `token' query parameter.
func Authenticate(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			provided := c.QueryParam("token")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				return weberror.New(http.StatusForbidden, "invalid trigger token")
			}

			return next(c)
		}
	}
}
