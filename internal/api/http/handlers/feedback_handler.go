package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsline/helpdesk-core/internal/api/dto"
	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/internal/service"
	apperrors "github.com/opsline/helpdesk-core/pkg/util"
)

// FeedbackHandler exposes resolution feedback endpoints.
type FeedbackHandler struct {
	feedback *service.FeedbackService
}

// NewFeedbackHandler constructs handler.
func NewFeedbackHandler(feedbackService *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedbackService}
}

// ProcessFeedback POST /tickets/:id/feedback.
func (h *FeedbackHandler) ProcessFeedback(c *fiber.Ctx) error {
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	outcome, err := h.feedback.ProcessFeedback(c.UserContext(), c.Params("id"), req.Feedback)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FeedbackResponse{
		TicketID:     outcome.Ticket.ID,
		Decision:     outcome.Decision,
		Reason:       outcome.Reason,
		Attempt:      outcome.Attempt,
		Replayed:     outcome.Replayed,
		TicketStatus: outcome.Ticket.Status,
	}})
}

// ListAttempts GET /tickets/:id/feedback.
func (h *FeedbackHandler) ListAttempts(c *fiber.Ctx) error {
	attempts, err := h.feedback.ListAttempts(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ResolutionAttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, attemptResponse(attempt))
	}
	return c.JSON(fiber.Map{"data": items})
}

func attemptResponse(attempt domain.ResolutionAttempt) dto.ResolutionAttemptResponse {
	return dto.ResolutionAttemptResponse{
		AttemptNumber: attempt.AttemptNumber,
		Feedback:      attempt.Feedback,
		Decision:      attempt.Decision,
		CreatedAt:     attempt.CreatedAt,
	}
}
