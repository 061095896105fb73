package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/storehook/webhook-svc/internal/handlers"
)

// SetupRoutes configures all application routes with dependencies
func SetupRoutes(
	app *fiber.App,
	healthHandler *handlers.HealthHandler,
	webhookHandler *handlers.WebhookHandler,
	paymentHandler *handlers.PaymentHandler,
	tasksHandler *handlers.TasksHandler,
) {
	app.Get("/health", healthHandler.HealthCheck)

	api := app.Group("/api/v1")
	{
		api.Post("/webhooks/dispatch", webhookHandler.Dispatch)
		api.Post("/webhooks/sweep", webhookHandler.Sweep)
		api.Post("/payments/confirm", paymentHandler.Confirm)
		api.Get("/tasks", tasksHandler.GetTasks)
	}
}
