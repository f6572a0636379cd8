package dto

import (
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// FeedbackRequest payload.
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// FeedbackResponse reports what a feedback submission decided.
type FeedbackResponse struct {
	TicketID     string                    `json:"ticket_id"`
	Decision     domain.ResolutionDecision `json:"decision"`
	Reason       string                    `json:"reason"`
	Attempt      int                       `json:"attempt"`
	Replayed     bool                      `json:"replayed"`
	TicketStatus domain.TicketStatus       `json:"ticket_status"`
}

// ResolutionAttemptResponse is one processed feedback record.
type ResolutionAttemptResponse struct {
	AttemptNumber int                       `json:"attempt_number"`
	Feedback      string                    `json:"feedback"`
	Decision      domain.ResolutionDecision `json:"decision"`
	CreatedAt     time.Time                 `json:"created_at"`
}
