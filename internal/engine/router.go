package engine

import "github.com/gofiber/fiber/v2"

func RegisterPublicationRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api/publication", middleware...)

	api.Post("/validate", h.Validate)
	api.Get("/requirements/:type", h.RequiredFields)
}
