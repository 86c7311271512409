package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/webserver/weberror"
)

// NewHTTPErrorHandler is a middleware that formats rendered errors.
// Client errors are logged as info, server errors as error.
func NewHTTPErrorHandler(log logger.Logger) func(err error, c echo.Context) {
	log = log.WithPrefix("[http]")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var rendered error
		switch err := err.(type) {
		case *echo.HTTPError:
			message := http.StatusText(err.Code)
			if m, ok := err.Message.(string); ok {
				message = m
			}
			rendered = weberror.New(err.Code, message)
		case *weberror.Error:
			rendered = err
		default:
			rendered = weberror.FromService(err)
		}

		code := weberror.StatusCode(rendered)
		if code >= http.StatusInternalServerError {
			log.Errorf("%s %s: %+v", c.Request().Method, c.Request().URL.Path, err)
		} else {
			log.Infof("%s %s: %s", c.Request().Method, c.Request().URL.Path, rendered)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, rendered)
		}
		if err != nil {
			log.Errorf("HTTPErrorHandler: %s", err)
		}
	}
}
