package middleware

import (
	"time"

	"bookstore/internal/logger"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger はリクエストごとのentryをctxに載せ、終了時に1行出す。
// request_idはechoのRequestIDミドルウェアが付けたものを使う
func RequestLogger(log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			entry := log.WithFields(logrus.Fields{
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
				"method":     req.Method,
				"path":       c.Path(),
			})
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), entry)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := logrus.Fields{
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
			}
			if uid, ok := CurrentUserID(c); ok {
				fields["user_id"] = uid
			}
			if c.Response().Status >= 500 {
				entry.WithFields(fields).Error("request")
			} else {
				entry.WithFields(fields).Info("request")
			}
			return nil
		}
	}
}
