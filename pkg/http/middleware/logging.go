package middleware

import (
	"time"

	"SpinTrack/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging writes one line per request. 5xx responses log at error
// level, 4xx at warn, the rest at debug.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("route", routeOf(c)),
				logger.String("uri", req.RequestURI),
				logger.String("remote", c.RealIP()),
				logger.Int("status", status),
				logger.Int64("bytes", c.Response().Size),
				logger.Duration("duration_ms", time.Since(start)),
			}
			switch {
			case status >= 500:
				if err != nil {
					fields = append(fields, logger.Error(err))
				}
				log.Error("http request", fields...)
			case status >= 400:
				log.Warn("http request", fields...)
			default:
				log.Debug("http request", fields...)
			}
			return nil
		}
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}
