package events

import (
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketEscalated       EventType = "ticket_escalated"
	EventWorkflowStepAdvanced  EventType = "workflow_step_advanced"
	EventFeedbackProcessed     EventType = "feedback_processed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TicketID  string       `json:"ticket_id"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   interface{}  `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ExternalKey string                `json:"external_key"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    domain.TicketCategory `json:"category"`
	Subject     string                `json:"subject"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	TriggerType     domain.TriggerType `json:"trigger_type"`
	Severity        domain.Severity    `json:"severity"`
	RecommendedTeam domain.TeamID      `json:"recommended_team"`
	Description     string             `json:"description"`
}

// WorkflowStepAdvancedPayload payload.
type WorkflowStepAdvancedPayload struct {
	Step     domain.WorkflowStep `json:"step"`
	NextStep domain.WorkflowStep `json:"next_step"`
}

// FeedbackProcessedPayload payload.
type FeedbackProcessedPayload struct {
	Decision domain.ResolutionDecision `json:"decision"`
	Attempt  int                       `json:"attempt"`
}
