package app

import (
	"fmt"
	"os"

	"meter-backend/internal/config"
	"meter-backend/internal/handlers"
	"meter-backend/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// NewServer builds the Fiber app with all routes registered.
func NewServer(cfg *config.Config, log *zap.Logger, meterService handlers.MeterService, tokens *services.TokenService, hub *handlers.FeedHub) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.ServiceName,
		BodyLimit:    cfg.BodyLimitMB * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler(log),
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New())

	// Ensure upload dir exists and serve uploaded files
	if err := os.MkdirAll(cfg.Images.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	app.Static("/uploads", cfg.Images.UploadDir)

	api := app.Group("/api")
	api.Get("/meter", handlers.ListMetersHandler(meterService, log))
	api.Post("/meter", handlers.AuthMiddleware(tokens), handlers.CreateMeterHandler(meterService, log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Live feed. Upgrade check runs before auth so plain requests get 426.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.AuthMiddleware(tokens))
	app.Get("/ws/meters", handlers.MeterFeedHandler(hub))

	return app, nil
}
