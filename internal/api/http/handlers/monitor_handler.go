package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsline/helpdesk-core/internal/api/dto"
	"github.com/opsline/helpdesk-core/internal/monitor"
	apperrors "github.com/opsline/helpdesk-core/pkg/util"
)

// MonitorHandler exposes the SLA monitor's controls.
type MonitorHandler struct {
	scheduler *monitor.Scheduler
}

// NewMonitorHandler constructs handler.
func NewMonitorHandler(scheduler *monitor.Scheduler) *MonitorHandler {
	return &MonitorHandler{scheduler: scheduler}
}

// RunSweep POST /monitor/sweep.
func (h *MonitorHandler) RunSweep(c *fiber.Ctx) error {
	report, err := h.scheduler.RunOnce(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// Status GET /monitor/status.
func (h *MonitorHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.scheduler.Status()})
}

// EscalateTicket POST /tickets/:id/escalate.
func (h *MonitorHandler) EscalateTicket(c *fiber.Ctx) error {
	var req dto.EscalateTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	trigger, ticket, err := h.scheduler.ManualEscalate(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket": ticketSummary(ticket),
		"escalation": dto.EscalationResponse{
			TicketID:        trigger.TicketID,
			TriggerType:     trigger.Type,
			Severity:        trigger.Severity,
			RecommendedTeam: trigger.RecommendedTeam,
			Description:     trigger.Description,
			CreatedAt:       trigger.CreatedAt,
		},
	}})
}
