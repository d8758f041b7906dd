package utils

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/srand/jolt/grid/pkg/log"
)

// Error body returned by all HTTP handlers.
type HttpError struct {
	Message string `json:"message"`
}

func HttpLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		log.Tracef("%4s %s %v", c.Request().Method, c.Request().URL, c.Response().Status)
		return err
	}
}

// NewEcho returns an echo instance with the common middleware installed.
func NewEcho() *echo.Echo {
	r := echo.New()
	r.HideBanner = true
	r.HidePort = true
	r.Use(HttpLogger)
	return r
}

// HttpErrorResponse writes err as a JSON error body with a matching status code.
func HttpErrorResponse(c echo.Context, err error) error {
	code := HttpStatus(err)
	if code >= 500 && !errors.Is(err, ErrCancelled) {
		log.Error(c.Request().URL, err)
	}
	return c.JSON(code, &HttpError{Message: err.Error()})
}
