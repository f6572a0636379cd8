package dto

import (
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Requester   string                `json:"requester"`
	Priority    domain.TicketPriority `json:"priority,omitempty"`
	Category    domain.TicketCategory `json:"category,omitempty"`
	SLATarget   string                `json:"sla_target,omitempty"`
}

// CreateTicketResponse returns the new ticket and its queued workflow step.
type CreateTicketResponse struct {
	TicketID    string              `json:"ticket_id"`
	ExternalKey string              `json:"external_key"`
	NextStep    domain.WorkflowStep `json:"next_step"`
}

// UpdateTicketRequest carries a partial field update.
type UpdateTicketRequest struct {
	Fields map[string]any `json:"fields"`
}

// EscalateTicketRequest payload.
type EscalateTicketRequest struct {
	Reason string `json:"reason"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                `json:"id"`
	ExternalKey  string                `json:"external_key"`
	Subject      string                `json:"subject"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	Category     domain.TicketCategory `json:"category"`
	AssignedTeam *domain.TeamID        `json:"assigned_team"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info plus its audit trail.
type TicketDetailResponse struct {
	ID               string                `json:"id"`
	ExternalKey      string                `json:"external_key"`
	Subject          string                `json:"subject"`
	Description      string                `json:"description"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	Category         domain.TicketCategory `json:"category"`
	AssignedTeam     *domain.TeamID        `json:"assigned_team"`
	Requester        string                `json:"requester"`
	SLATargetSeconds int64                 `json:"sla_target_seconds"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	ResolvedAt       *time.Time            `json:"resolved_at"`
	Version          int64                 `json:"version"`
	History          []FieldChangeResponse `json:"history"`
}

// FieldChangeResponse is one audit record.
type FieldChangeResponse struct {
	ID        string       `json:"id"`
	Field     domain.Field `json:"field"`
	OldValue  string       `json:"old_value"`
	NewValue  string       `json:"new_value"`
	Actor     domain.Actor `json:"actor"`
	CreatedAt time.Time    `json:"created_at"`
}

// EscalationResponse describes one raised escalation.
type EscalationResponse struct {
	TicketID        string             `json:"ticket_id"`
	TriggerType     domain.TriggerType `json:"trigger_type"`
	Severity        domain.Severity    `json:"severity"`
	RecommendedTeam domain.TeamID      `json:"recommended_team"`
	Description     string             `json:"description"`
	CreatedAt       time.Time          `json:"created_at"`
}
