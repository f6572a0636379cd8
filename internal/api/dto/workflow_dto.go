package dto

import (
	"encoding/json"
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// AdvanceStepRequest payload. An absent payload on the KNOWLEDGE_SEARCH step
// asks the server to run the knowledge lookup itself.
type AdvanceStepRequest struct {
	Step    domain.WorkflowStep `json:"step"`
	Payload json.RawMessage     `json:"payload,omitempty"`
}

// WorkflowStateResponse reports triage pipeline progress for one ticket.
type WorkflowStateResponse struct {
	TicketID       string                                     `json:"ticket_id"`
	CurrentStep    domain.WorkflowStep                        `json:"current_step,omitempty"`
	NextStep       domain.WorkflowStep                        `json:"next_step"`
	CompletedSteps []domain.WorkflowStep                      `json:"completed_steps"`
	StepData       map[domain.WorkflowStep]domain.StepPayload `json:"step_data,omitempty"`
	Status         domain.WorkflowStatus                      `json:"status"`
	UpdatedAt      *time.Time                                 `json:"updated_at,omitempty"`
}
