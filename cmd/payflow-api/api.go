// Package main provides the payflow read-only API server.
package main

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/paygrid/payflow/pkg/persistence"
	"github.com/paygrid/payflow/pkg/web"
)

type API struct {
	logger   *slog.Logger
	store    persistence.RecordStore
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, store persistence.RecordStore) *API {
	return &API{
		logger:   logger,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.store, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Payflow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.ListWorkflowsByState)
	w.Get("/:id", handlers.GetWorkflow)

	app.Get("/accounts/:id/workflows", handlers.ListWorkflowsByAccount)

	return app
}

func (a *API) Start(port string) error {
	return a.App().Listen(":" + port)
}
