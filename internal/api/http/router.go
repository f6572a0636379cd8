package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsline/helpdesk-core/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Tickets  *handlers.TicketsHandler
	Workflow *handlers.WorkflowHandler
	Feedback *handlers.FeedbackHandler
	Monitor  *handlers.MonitorHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/escalate", cfg.Monitor.EscalateTicket)
	tickets.Get("/:id/workflow", cfg.Workflow.GetStatus)
	tickets.Post("/:id/workflow/steps", cfg.Workflow.AdvanceStep)
	tickets.Post("/:id/feedback", cfg.Feedback.ProcessFeedback)
	tickets.Get("/:id/feedback", cfg.Feedback.ListAttempts)

	monitorGroup := app.Group("/monitor")
	monitorGroup.Post("/sweep", cfg.Monitor.RunSweep)
	monitorGroup.Get("/status", cfg.Monitor.Status)
}
