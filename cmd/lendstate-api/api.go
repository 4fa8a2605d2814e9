// Package main provides the lendstate API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/lendstate/lendstate/pkg/cmd"
	"github.com/lendstate/lendstate/pkg/services"
	"github.com/lendstate/lendstate/pkg/web"
)

type API struct {
	logger   *slog.Logger
	app      *cmd.App
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, app *cmd.App) *API {
	return &API{
		logger:   logger,
		app:      app,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.app.Persistence, a.app.Graph)
	entityService := services.NewEntity(a.app.Persistence.EntityRepository(), a.app.Machine, a.app.History)
	verificationService := services.NewVerification(a.app.Tracker, a.app.EventBus, a.app.Clock, a.logger)

	handlers := web.NewAPIHandlers(workflowService, entityService, verificationService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("lendstate API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
