package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsline/helpdesk-core/internal/api/dto"
	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/internal/service"
	apperrors "github.com/opsline/helpdesk-core/pkg/util"
)

// WorkflowHandler exposes triage pipeline endpoints.
type WorkflowHandler struct {
	workflow *service.WorkflowService
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(workflowService *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflowService}
}

// GetStatus GET /tickets/:id/workflow.
func (h *WorkflowHandler) GetStatus(c *fiber.Ctx) error {
	state, err := h.workflow.GetStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workflowStateResponse(state)})
}

// AdvanceStep POST /tickets/:id/workflow/steps. KNOWLEDGE_SEARCH accepts an
// empty payload, which runs the server-side knowledge lookup instead.
func (h *WorkflowHandler) AdvanceStep(c *fiber.Ctx) error {
	var req dto.AdvanceStepRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Step == "" {
		return apperrors.NewValidationError("step is required", nil)
	}

	ticketID := c.Params("id")
	if len(req.Payload) == 0 {
		if req.Step != domain.StepKnowledgeSearch {
			return apperrors.NewValidationError("payload is required", map[string]any{"step": string(req.Step)})
		}
		state, err := h.workflow.RunKnowledgeSearch(c.UserContext(), ticketID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": workflowStateResponse(state)})
	}

	payload, err := domain.DecodeStepPayload(req.Step, req.Payload)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"step": string(req.Step)})
	}
	state, err := h.workflow.AdvanceStep(c.UserContext(), ticketID, payload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workflowStateResponse(state)})
}

func workflowStateResponse(state *domain.WorkflowState) dto.WorkflowStateResponse {
	resp := dto.WorkflowStateResponse{
		TicketID:       state.TicketID,
		CurrentStep:    state.CurrentStep,
		NextStep:       state.NextStep,
		CompletedSteps: state.CompletedSteps,
		StepData:       state.StepData,
		Status:         state.Status,
	}
	if resp.CompletedSteps == nil {
		resp.CompletedSteps = []domain.WorkflowStep{}
	}
	if !state.UpdatedAt.IsZero() {
		t := state.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}
