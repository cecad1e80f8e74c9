package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/AsemElenawy/simtool-Nanohub/internal/metrics"
)

// RegisterHealthRoutes 暴露存活检查；m 非空时同时挂载 /metrics。
func RegisterHealthRoutes(app *fiber.App, m *metrics.Metrics) {
	if app == nil {
		return
	}

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}
}
