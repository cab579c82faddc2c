package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"portalapi/internal/logging"
)

// ErrorLocalKey is the fiber.Ctx locals key where handlers that answered
// with a 5xx leave the underlying error for the access log.
const ErrorLocalKey = "error"

// Logger emits one structured line per request with request_id, method,
// path, status and latency in milliseconds.
func Logger(log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		status := statusOf(c, err)
		args := []any{
			"request_id", rid,
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", float64(time.Since(start).Microseconds()) / 1000,
			"ip", c.IP(),
		}
		if status >= fiber.StatusInternalServerError {
			cause := err
			if cause == nil {
				cause, _ = c.Locals(ErrorLocalKey).(error)
			}
			log.Error(c.UserContext(), "request", append(args, "error", errString(cause))...)
		} else {
			log.Info(c.UserContext(), "request", args...)
		}

		return err
	}
}

// LoggerWithWriter writes access logs as JSON to w with timestamps in loc.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return Logger(logging.New(w, "info", loc))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
