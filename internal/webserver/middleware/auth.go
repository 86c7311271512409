package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/padbank/internal/service"
	"github.com/mdouchement/padbank/internal/webserver/weberror"
)

// Identity headers.
const (
	HeaderAuthToken = "X-Auth-Token"
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// Authenticate rejects requests without the given token. An empty token disables the check.
func Authenticate(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			if token == "" {
				return next(c)
			}

			if subtle.ConstantTimeCompare([]byte(c.Request().Header.Get(HeaderAuthToken)), []byte(token)) != 1 {
				return weberror.New(http.StatusUnauthorized, "authorization failed")
			}

			return next(c)
		}
	}
}

// Identity carries the user named by the identity headers in the request context.
// Requests without a user id are anonymous.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			id := c.Request().Header.Get(HeaderUserID)
			if id == "" {
				c.SetRequest(c.Request().WithContext(service.WithAnonymous(c.Request().Context())))
				return next(c)
			}

			ctx := service.WithUser(c.Request().Context(), service.User{
				ID:    id,
				Email: c.Request().Header.Get(HeaderUserEmail),
			})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
