package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"

	controller "propleads/controllers"
	"propleads/middleware"
	"propleads/store"
)

func SetupRoutes(app *fiber.App, st store.Storage, log *logrus.Logger) {
	userController := controller.NewUserController(st, log)
	leadController := controller.NewLeadController(st, log)

	// API group with the general rate limit and request logging
	api := app.Group("/api", middleware.GeneralRateLimiter(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// User routes
	user := api.Group("/users")
	user.Post("/", userController.CreateUser)
	user.Get("/:id", userController.GetUser)

	// Lead routes. Static paths are registered before /:id so that
	// "stats" and "export" are not captured as lead ids.
	lead := api.Group("/leads")
	lead.Get("/stats/:userId", leadController.GetLeadStats)
	lead.Get("/export/csv", leadController.ExportLeadsCSV)
	lead.Get("/", etag.New(), leadController.GetLeads)
	lead.Post("/", middleware.CreateLeadRateLimiter(), leadController.CreateLead)
	lead.Get("/:id/history", leadController.GetLeadHistory)
	lead.Get("/:id", leadController.GetLead)
	lead.Patch("/:id", leadController.UpdateLead)
	lead.Delete("/:id", leadController.DeleteLead)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "The requested resource was not found",
		})
	})

	log.Info("API routes initialized successfully")
}
