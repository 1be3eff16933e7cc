package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fitnow/fitnow-api/internal/logging"
	"github.com/fitnow/fitnow-api/internal/metrics"
)

// RequestLogger logs one zerolog line per request and records the request
// duration histogram.  Mount it after echo's RequestID middleware so the id
// is available.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo's error handler write the response so the
				// status below is the one the client sees
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			metrics.HTTPRequestDuration.
				WithLabelValues(req.Method, route, strconv.Itoa(res.Status)).
				Observe(elapsed.Seconds())

			ev := logging.Info()
			if res.Status >= 500 {
				ev = logging.Error().Err(err)
			}
			ev = ev.Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("method", req.Method).
				Str("route", route).
				Str("uri", req.RequestURI).
				Int("status", res.Status).
				Int64("bytes", res.Size).
				Dur("latency", elapsed).
				Str("remote_ip", c.RealIP())
			if uid, ok := UserID(c); ok {
				ev = ev.Uint64("user_id", uid)
			}
			ev.Msg("request")
			return nil
		}
	}
}
