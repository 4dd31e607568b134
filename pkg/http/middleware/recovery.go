package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"SpinTrack/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns a handler panic into a 500 response.
func Recover(log *logger.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					perr, ok := r.(error)
					if !ok {
						perr = fmt.Errorf("%v", r)
					}
					log.Error("panic recovered",
						logger.String("route", c.Path()),
						logger.Error(perr),
						logger.String("stack", string(debug.Stack())),
					)
					err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
						"status":  http.StatusInternalServerError,
						"message": "Internal Server Error",
					})
				}
			}()
			return next(c)
		}
	}
}
