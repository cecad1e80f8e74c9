package server

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AsemElenawy/simtool-Nanohub/internal/logging"
	"github.com/AsemElenawy/simtool-Nanohub/internal/metrics"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger    *logrus.Logger
	Metrics   *metrics.Metrics
	AuthToken string
	BodyLimit int64
}

const (
	contextKeyRequestID = "_simtool_request_id"

	defaultBodyLimit = 1 << 30
	protectedPrefix  = "/api/"
)

// NewApp builds a Fiber application with request-id, recovery, access log,
// metrics and optional bearer-auth middleware. Routes are registered by the
// caller.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.BodyLimit < 0 {
		return nil, errors.New("body limit must not be negative")
	}
	bodyLimit := opts.BodyLimit
	if bodyLimit == 0 {
		bodyLimit = defaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		BodyLimit:     int(bodyLimit),
		ErrorHandler:  errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())
	app.Use(accessLogMiddleware(opts.Logger, opts.Metrics))
	if opts.AuthToken != "" {
		app.Use(bearerAuthMiddleware(opts.AuthToken, opts.Logger))
	}

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID；调用方传入的 X-Request-ID 会被沿用。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := strings.TrimSpace(c.Get("X-Request-ID"))
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// accessLogMiddleware 记录每个请求的耗时与状态，并按路由模板上报指标。
func accessLogMiddleware(logger *logrus.Logger, m *metrics.Metrics) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		elapsed := time.Since(started)

		m.ObserveRequest(routeLabel(c), c.Method(), status, elapsed)

		fields := logging.RequestFields(c.Method(), c.Path(), status, elapsed, RequestID(c))
		entry := logger.WithFields(fields)
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Error("request_failed")
		case status >= fiber.StatusBadRequest:
			entry.Warn("request_rejected")
		default:
			entry.Debug("request_complete")
		}
		return err
	}
}

// bearerAuthMiddleware 仅保护 /api/ 前缀；健康检查、指标与仪表盘保持开放。
func bearerAuthMiddleware(token string, logger *logrus.Logger) fiber.Handler {
	expected := []byte(token)
	return func(c fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), protectedPrefix) {
			return c.Next()
		}
		header := c.Get(fiber.HeaderAuthorization)
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), expected) != 1 {
			logger.WithFields(logrus.Fields{
				"action":     "auth",
				"path":       c.Path(),
				"request_id": RequestID(c),
			}).Warn("unauthorized")
			c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="simtool-cache"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}
		return c.Next()
	}
}

// errorHandler 统一输出 JSON 错误体，与业务路由的 {"error": code} 格式保持一致。
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	payload := fiber.Map{"error": errorCode(code)}
	if code < fiber.StatusInternalServerError {
		payload["detail"] = err.Error()
	}
	return c.Status(code).JSON(payload)
}

// routeLabel 返回路由模板作为指标标签；未匹配任何路由的请求归为 unmatched。
func routeLabel(c fiber.Ctx) string {
	r := c.Route()
	if r == nil || r.Path == "" {
		return "unmatched"
	}
	if r.Path == "/" && c.Path() != "/" {
		return "unmatched"
	}
	return r.Path
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "body_too_large"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	default:
		if status >= fiber.StatusInternalServerError {
			return "internal_error"
		}
		return "invalid_request"
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
