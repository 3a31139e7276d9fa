package bootstrap

import (
	"webcarros-backend/internal/config"
	"webcarros-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless hosts (the api handler imports this package, not internal).
// Connections stay open for the lifetime of the function instance.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app, _, err := router.CreateApp(cfg)
	return app, err
}
