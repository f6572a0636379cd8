package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opsline/helpdesk-core/internal/api/dto"
	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/internal/service"
	apperrors "github.com/opsline/helpdesk-core/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets  *service.TicketService
	workflow *service.WorkflowService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, workflowService *service.WorkflowService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, workflow: workflowService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, state, err := h.workflow.CreateTicketAndStart(c.UserContext(), service.CreateTicketInput{
		Subject:     req.Subject,
		Description: req.Description,
		Requester:   req.Requester,
		Priority:    req.Priority,
		Category:    req.Category,
		SLATarget:   req.SLATarget,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreateTicketResponse{
		TicketID:    ticket.ID,
		ExternalKey: ticket.ExternalKey,
		NextStep:    state.NextStep,
	}})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.SearchTickets(c.UserContext(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.tickets.ListHistory(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, history)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	changes := make(map[domain.Field]any, len(req.Fields))
	for field, value := range req.Fields {
		changes[domain.Field(field)] = value
	}
	ticket, err := h.tickets.UpdateTicketFields(c.UserContext(), c.Params("id"), changes, domain.ActorAPI)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) service.SearchFilter {
	filter := service.SearchFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if categoryStr := c.Query("category"); categoryStr != "" {
		for _, part := range strings.Split(categoryStr, ",") {
			filter.Categories = append(filter.Categories, domain.TicketCategory(strings.TrimSpace(part)))
		}
	}
	if team := c.Query("team"); team != "" {
		id := domain.TeamID(team)
		filter.Team = &id
	}
	if requester := c.Query("requester"); requester != "" {
		filter.Requester = &requester
	}
	if q := c.Query("q"); q != "" {
		filter.SearchTerm = &q
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:           ticket.ID,
		ExternalKey:  ticket.ExternalKey,
		Subject:      ticket.Subject,
		Status:       ticket.Status,
		Priority:     ticket.Priority,
		Category:     ticket.Category,
		AssignedTeam: ticket.AssignedTeam,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, history []domain.FieldChangeRecord) dto.TicketDetailResponse {
	return dto.TicketDetailResponse{
		ID:               ticket.ID,
		ExternalKey:      ticket.ExternalKey,
		Subject:          ticket.Subject,
		Description:      ticket.Description,
		Status:           ticket.Status,
		Priority:         ticket.Priority,
		Category:         ticket.Category,
		AssignedTeam:     ticket.AssignedTeam,
		Requester:        ticket.Requester,
		SLATargetSeconds: int64(ticket.SLATarget / time.Second),
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
		ResolvedAt:       ticket.ResolvedAt,
		Version:          ticket.Version,
		History:          historyResponses(history),
	}
}

func historyResponses(entries []domain.FieldChangeRecord) []dto.FieldChangeResponse {
	resp := make([]dto.FieldChangeResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.FieldChangeResponse{
			ID:        entry.ID,
			Field:     entry.Field,
			OldValue:  entry.OldValue,
			NewValue:  entry.NewValue,
			Actor:     entry.Actor,
			CreatedAt: entry.CreatedAt,
		})
	}
	return resp
}
