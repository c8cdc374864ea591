package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// NewApp wires the ledger routes into a fiber application. Everything is
// mounted behind the caller middleware; identity resolution itself stays
// in the gateway.
func NewApp(handler *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	v1 := app.Group("/v1", WithCaller())
	v1.Post("/movements", handler.CreateMovement)
	v1.Put("/movements/:id/revert", handler.RevertMovement)
	v1.Get("/accounts/:id/movements", handler.ListMovements)

	return app
}
