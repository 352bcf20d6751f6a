package bootstrap

import (
	"handyhub-backend/internal/config"
	"handyhub-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless deployments (the api handler
// imports this package, not internal). No background workers run here; a
// scheduler calls POST /api/v1/sweeps/expired and /api/v1/alerts/dispatch.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app, _, err := router.CreateApp(cfg)
	return app, err
}
