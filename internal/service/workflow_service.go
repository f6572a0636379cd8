package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline/helpdesk-core/internal/clock"
	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/internal/events"
	"github.com/opsline/helpdesk-core/internal/idempotency"
	"github.com/opsline/helpdesk-core/internal/knowledge"
	"github.com/opsline/helpdesk-core/internal/repository"
	"github.com/opsline/helpdesk-core/internal/sla"
	"github.com/opsline/helpdesk-core/pkg/util"
)

// WorkflowService drives the triage pipeline: CLASSIFICATION, then
// KNOWLEDGE_SEARCH, then either COMPLETE (solution found) or ASSIGNMENT.
// Step applications are idempotent on byte-identical payloads.
type WorkflowService struct {
	tickets    *TicketService
	states     repository.WorkflowStateRepository
	idem       idempotency.Store
	searcher   knowledge.Searcher
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	Tickets     *TicketService
	StateRepo   repository.WorkflowStateRepository
	Idempotency idempotency.Store
	Searcher    knowledge.Searcher
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		tickets:    deps.Tickets,
		states:     deps.StateRepo,
		idem:       deps.Idempotency,
		searcher:   deps.Searcher,
		dispatcher: deps.Dispatcher,
		clock:      clk,
		logger:     logger,
	}
}

// CreateTicketAndStart creates a ticket and opens its workflow record with
// CLASSIFICATION queued as the first step.
func (s *WorkflowService) CreateTicketAndStart(ctx context.Context, input CreateTicketInput) (*domain.Ticket, *domain.WorkflowState, error) {
	ticket, err := s.tickets.CreateTicket(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	state := newWorkflowState(ticket.ID)
	if err := s.states.Save(ctx, state); err != nil {
		return nil, nil, err
	}
	return ticket, state, nil
}

// AdvanceStep applies one workflow step. Replaying a step with a
// byte-identical payload returns the stored state without touching the ticket;
// re-applying a completed step with a different payload overwrites its data
// and recomputes the next step.
func (s *WorkflowService) AdvanceStep(ctx context.Context, ticketID string, payload domain.StepPayload) (*domain.WorkflowState, error) {
	step := payload.Step()
	if !step.Valid() {
		return nil, util.NewValidationError(fmt.Sprintf("step %q is not executable", step), nil)
	}
	if err := payload.Validate(); err != nil {
		return nil, util.NewValidationError(err.Error(), map[string]any{"step": string(step)})
	}

	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	encoded, err := domain.EncodeStepPayload(payload)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	key := idempotency.Key{
		TicketID:    ticket.ID,
		Operation:   "workflow.advance." + string(step),
		Fingerprint: idempotency.Fingerprint(encoded),
	}

	if seen, err := s.idem.Seen(ctx, key); err != nil {
		s.logger.Warn("idempotency lookup failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else if seen {
		return s.currentState(ctx, ticket.ID)
	}

	state, err := s.states.Get(ctx, ticket.ID)
	if err != nil {
		if !util.IsNotFound(err) {
			return nil, err
		}
		state = newWorkflowState(ticket.ID)
	}

	// The guard store may have evicted the key; the persisted step data is
	// the source of truth for replay detection.
	if state.Completed(step) {
		if stored, ok := state.StepData[step]; ok {
			storedBytes, encErr := domain.EncodeStepPayload(stored)
			if encErr == nil && bytes.Equal(storedBytes, encoded) {
				s.recordApplied(ctx, key)
				return state, nil
			}
		}
	}

	if step != state.NextStep && !state.Completed(step) {
		return nil, util.NewValidationError(
			fmt.Sprintf("step %s is not available", step),
			map[string]any{"next_step": string(state.NextStep)},
		)
	}

	if err := s.applyStepEffects(ctx, ticket, payload); err != nil {
		return nil, err
	}

	state.CurrentStep = step
	state.NextStep = nextStepAfter(step, payload)
	state.Status = statusAfter(step, payload)
	if state.StepData == nil {
		state.StepData = map[domain.WorkflowStep]domain.StepPayload{}
	}
	state.StepData[step] = payload
	if !state.Completed(step) {
		state.CompletedSteps = append(state.CompletedSteps, step)
	}
	if err := s.states.Save(ctx, state); err != nil {
		return nil, err
	}

	s.recordApplied(ctx, key)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventWorkflowStepAdvanced,
		TicketID: ticket.ID,
		Actor:    domain.ActorWorkflow,
		Payload: events.WorkflowStepAdvancedPayload{
			Step:     step,
			NextStep: state.NextStep,
		},
	})
	return state, nil
}

// RunKnowledgeSearch executes the knowledge lookup for a ticket and advances
// the KNOWLEDGE_SEARCH step with the result. Search backend failures degrade
// to an empty result so triage keeps moving.
func (s *WorkflowService) RunKnowledgeSearch(ctx context.Context, ticketID string) (*domain.WorkflowState, error) {
	if s.searcher == nil {
		return nil, util.NewInternalError(fmt.Errorf("knowledge searcher not configured"))
	}
	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	query := ticket.Subject
	matches, err := s.searcher.Search(ctx, query, ticket.Category, knowledge.DefaultLimit)
	if err != nil {
		s.logger.Warn("knowledge search failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
		matches = nil
	}
	return s.AdvanceStep(ctx, ticket.ID, knowledge.BuildPayload(query, matches))
}

// GetStatus reports workflow progress. Tickets that never entered the
// pipeline get a synthetic not_found state with CLASSIFICATION queued.
func (s *WorkflowService) GetStatus(ctx context.Context, ticketID string) (*domain.WorkflowState, error) {
	id := ticketID
	if strings.HasPrefix(ticketID, "TCK-") {
		ticket, err := s.tickets.GetTicket(ctx, ticketID)
		if err != nil {
			if util.IsNotFound(err) {
				return defaultWorkflowState(ticketID), nil
			}
			return nil, err
		}
		id = ticket.ID
	}

	state, err := s.states.Get(ctx, id)
	if err != nil {
		if util.IsNotFound(err) {
			return defaultWorkflowState(id), nil
		}
		return nil, err
	}
	return state, nil
}

// applyStepEffects pushes the step outcome onto the ticket. The field changes
// do not depend on the ticket's prior state, so conflicts retry blindly.
func (s *WorkflowService) applyStepEffects(ctx context.Context, ticket *domain.Ticket, payload domain.StepPayload) error {
	var changes map[domain.Field]any
	switch p := payload.(type) {
	case domain.ClassificationPayload:
		changes = map[domain.Field]any{
			domain.FieldCategory:  p.Category,
			domain.FieldPriority:  p.Priority,
			domain.FieldSLATarget: sla.TargetFor(p.Priority),
		}
	case domain.KnowledgeSearchPayload:
		if !p.SolutionFound {
			return nil
		}
		changes = map[domain.Field]any{
			domain.FieldStatus: domain.TicketStatusResolved,
		}
	case domain.AssignmentPayload:
		changes = map[domain.Field]any{
			domain.FieldAssignedTeam: p.Team,
			domain.FieldStatus:       domain.TicketStatusInProgress,
		}
	default:
		return nil
	}

	_, err := s.tickets.UpdateTicketFields(ctx, ticket.ID, changes, domain.ActorWorkflow)
	return err
}

func (s *WorkflowService) currentState(ctx context.Context, ticketID string) (*domain.WorkflowState, error) {
	state, err := s.states.Get(ctx, ticketID)
	if err != nil {
		if util.IsNotFound(err) {
			return defaultWorkflowState(ticketID), nil
		}
		return nil, err
	}
	return state, nil
}

func (s *WorkflowService) recordApplied(ctx context.Context, key idempotency.Key) {
	if err := s.idem.Record(ctx, key); err != nil {
		s.logger.Warn("idempotency record failed", zap.String("ticket_id", key.TicketID), zap.Error(err))
	}
}

func (s *WorkflowService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func newWorkflowState(ticketID string) *domain.WorkflowState {
	return &domain.WorkflowState{
		TicketID:       ticketID,
		NextStep:       domain.StepClassification,
		CompletedSteps: []domain.WorkflowStep{},
		StepData:       map[domain.WorkflowStep]domain.StepPayload{},
		Status:         domain.WorkflowActive,
	}
}

func defaultWorkflowState(ticketID string) *domain.WorkflowState {
	return &domain.WorkflowState{
		TicketID:       ticketID,
		NextStep:       domain.StepClassification,
		CompletedSteps: []domain.WorkflowStep{},
		StepData:       map[domain.WorkflowStep]domain.StepPayload{},
		Status:         domain.WorkflowNotFound,
	}
}

func nextStepAfter(step domain.WorkflowStep, payload domain.StepPayload) domain.WorkflowStep {
	switch step {
	case domain.StepClassification:
		return domain.StepKnowledgeSearch
	case domain.StepKnowledgeSearch:
		if p, ok := payload.(domain.KnowledgeSearchPayload); ok && p.SolutionFound {
			return domain.StepComplete
		}
		return domain.StepAssignment
	default:
		return domain.StepComplete
	}
}

func statusAfter(step domain.WorkflowStep, payload domain.StepPayload) domain.WorkflowStatus {
	switch step {
	case domain.StepKnowledgeSearch:
		if p, ok := payload.(domain.KnowledgeSearchPayload); ok && p.SolutionFound {
			return domain.WorkflowResolved
		}
		return domain.WorkflowActive
	case domain.StepAssignment:
		return domain.WorkflowOpen
	default:
		return domain.WorkflowActive
	}
}
