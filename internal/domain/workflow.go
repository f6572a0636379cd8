package domain

import "time"

// WorkflowStep enumerates the automated triage pipeline.
type WorkflowStep string

const (
	StepClassification  WorkflowStep = "CLASSIFICATION"
	StepKnowledgeSearch WorkflowStep = "KNOWLEDGE_SEARCH"
	StepAssignment      WorkflowStep = "ASSIGNMENT"
	StepComplete        WorkflowStep = "COMPLETE"
)

// Valid reports whether the value is an executable pipeline step.
// COMPLETE is a terminal marker, not an executable step.
func (s WorkflowStep) Valid() bool {
	switch s {
	case StepClassification, StepKnowledgeSearch, StepAssignment:
		return true
	}
	return false
}

// WorkflowStatus tracks whether automation is still driving a ticket.
type WorkflowStatus string

const (
	// WorkflowActive means further automated steps are expected.
	WorkflowActive WorkflowStatus = "active"
	// WorkflowResolved means automation closed the loop with a known solution.
	WorkflowResolved WorkflowStatus = "resolved"
	// WorkflowOpen means the pipeline finished and a human team owns the ticket.
	WorkflowOpen WorkflowStatus = "open"
	// WorkflowNotFound marks the synthetic state reported for tickets that
	// never entered the pipeline.
	WorkflowNotFound WorkflowStatus = "not_found"
)

// WorkflowState is the per-ticket workflow progress record, keyed by ticket id.
type WorkflowState struct {
	TicketID       string
	CurrentStep    WorkflowStep
	NextStep       WorkflowStep
	CompletedSteps []WorkflowStep
	StepData       map[WorkflowStep]StepPayload
	Status         WorkflowStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Completed reports whether the step already appears in CompletedSteps.
func (w *WorkflowState) Completed(step WorkflowStep) bool {
	for _, s := range w.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}
