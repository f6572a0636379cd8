package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline/helpdesk-core/internal/clock"
	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/internal/events"
	"github.com/opsline/helpdesk-core/internal/feedback"
	"github.com/opsline/helpdesk-core/internal/repository"
	"github.com/opsline/helpdesk-core/pkg/util"
)

// FeedbackService turns requester feedback on resolved tickets into close or
// reopen decisions. The resolution attempt log is the replay ledger: the
// exact same feedback text never gets processed twice.
type FeedbackService struct {
	tickets    *TicketService
	attempts   repository.ResolutionAttemptRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// FeedbackDependencies bundles collaborators for the feedback service.
type FeedbackDependencies struct {
	Tickets     *TicketService
	AttemptRepo repository.ResolutionAttemptRepository
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
}

// FeedbackOutcome reports what a feedback submission did.
type FeedbackOutcome struct {
	Ticket   *domain.Ticket
	Decision domain.ResolutionDecision
	Reason   string
	Attempt  int
	Replayed bool
}

// NewFeedbackService constructs the service.
func NewFeedbackService(deps FeedbackDependencies) *FeedbackService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{
		tickets:    deps.Tickets,
		attempts:   deps.AttemptRepo,
		dispatcher: deps.Dispatcher,
		clock:      clk,
		logger:     logger,
	}
}

// ProcessFeedback classifies the feedback and applies the decision: positive
// closes the ticket, negative or ambiguous reopens it into in_progress with
// the assigned team untouched. Re-submitting identical text replays the
// stored decision without mutating the ticket again.
func (s *FeedbackService) ProcessFeedback(ctx context.Context, ticketID, text string) (*FeedbackOutcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, util.NewValidationError("feedback text is required", nil)
	}

	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	prior, err := s.attempts.FindByFeedback(ctx, ticket.ID, text)
	if err == nil {
		return &FeedbackOutcome{
			Ticket:   ticket,
			Decision: prior.Decision,
			Reason:   "replayed prior decision",
			Attempt:  prior.AttemptNumber,
			Replayed: true,
		}, nil
	}
	if !util.IsNotFound(err) {
		return nil, err
	}

	result := feedback.Classify(text)
	changes := map[domain.Field]any{domain.FieldStatus: domain.TicketStatusClosed}
	if result.Decision == domain.DecisionReopen {
		changes = map[domain.Field]any{domain.FieldStatus: domain.TicketStatusInProgress}
	}
	updated, err := s.tickets.UpdateTicketFields(ctx, ticket.ID, changes, domain.ActorResolution)
	if err != nil {
		return nil, err
	}

	existing, err := s.attempts.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	attempt := &domain.ResolutionAttempt{
		TicketID:      ticket.ID,
		AttemptNumber: len(existing) + 1,
		Feedback:      text,
		Decision:      result.Decision,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	s.logger.Info("feedback processed",
		zap.String("ticket_id", ticket.ID),
		zap.String("decision", string(result.Decision)),
		zap.String("reason", result.Reason),
		zap.Int("attempt", attempt.AttemptNumber),
	)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventFeedbackProcessed,
		TicketID: ticket.ID,
		Actor:    domain.ActorResolution,
		Payload: events.FeedbackProcessedPayload{
			Decision: result.Decision,
			Attempt:  attempt.AttemptNumber,
		},
	})

	return &FeedbackOutcome{
		Ticket:   updated,
		Decision: result.Decision,
		Reason:   result.Reason,
		Attempt:  attempt.AttemptNumber,
	}, nil
}

// ListAttempts returns the processed feedback history for a ticket.
func (s *FeedbackService) ListAttempts(ctx context.Context, ticketID string) ([]domain.ResolutionAttempt, error) {
	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.attempts.ListByTicket(ctx, ticket.ID)
}

func (s *FeedbackService) publishEvent(ctx context.Context, event events.Event) {
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
