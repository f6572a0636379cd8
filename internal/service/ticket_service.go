package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline/helpdesk-core/internal/clock"
	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/internal/events"
	"github.com/opsline/helpdesk-core/internal/repository"
	"github.com/opsline/helpdesk-core/internal/sla"
	"github.com/opsline/helpdesk-core/pkg/util"
)

// casRetries bounds blind retries after an optimistic-version conflict.
const casRetries = 3

// TicketService owns ticket creation, lookup and field mutation. Every
// mutation flows through ApplyFields so audit records stay transactional and
// lifecycle events get published from one place.
type TicketService struct {
	tickets    repository.TicketRepository
	changes    repository.FieldChangeRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	ChangeRepo repository.FieldChangeRepository
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// CreateTicketInput describes ticket creation payload. SLATarget optionally
// carries a legacy target string such as "4 hours"; when absent the target
// derives from the priority.
type CreateTicketInput struct {
	Subject     string
	Description string
	Requester   string
	Priority    domain.TicketPriority
	Category    domain.TicketCategory
	SLATarget   string
}

// SearchFilter describes ticket listing filters.
type SearchFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.TicketCategory
	Team       *domain.TeamID
	Requester  *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		changes:    deps.ChangeRepo,
		dispatcher: deps.Dispatcher,
		clock:      clk,
		logger:     logger,
	}
}

// CreateTicket validates the input and persists a new open ticket.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, util.NewValidationError("subject is required", nil)
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, util.NewValidationError("description is required", nil)
	}
	requester := strings.TrimSpace(input.Requester)
	if !looksLikeEmail(requester) {
		return nil, util.NewValidationError("requester must be an email address", map[string]any{"requester": input.Requester})
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, util.NewValidationError("priority value is out of range", map[string]any{"priority": input.Priority})
	}
	category := input.Category
	if category == "" {
		category = domain.CategoryUncategorized
	}
	if !category.Valid() {
		return nil, util.NewValidationError("category value is out of range", map[string]any{"category": input.Category})
	}

	target := sla.TargetFor(priority)
	if input.SLATarget != "" {
		parsed, err := sla.ParseTarget(input.SLATarget)
		if errors.Is(err, sla.ErrMalformedTarget) {
			// Malformed legacy value: ParseTarget already handed back the
			// fallback target, so warn and keep going.
			s.logger.Warn("malformed sla target, using fallback",
				zap.String("sla_target", input.SLATarget),
				zap.Duration("fallback", parsed),
			)
		}
		target = parsed
	}

	ticket := &domain.Ticket{
		ExternalKey: s.generateTicketKey(),
		Subject:     subject,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		Category:    category,
		Requester:   requester,
		SLATarget:   target,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    domain.ActorSystem,
		Payload: events.TicketCreatedPayload{
			ExternalKey: ticket.ExternalKey,
			Priority:    ticket.Priority,
			Category:    ticket.Category,
			Subject:     ticket.Subject,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket by internal id, or by external key when the
// identifier carries the TCK- prefix.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	if strings.HasPrefix(id, "TCK-") {
		return s.tickets.GetByExternalKey(ctx, id)
	}
	return s.tickets.GetByID(ctx, id)
}

// SearchTickets returns tickets matching the filter, newest first.
func (s *TicketService) SearchTickets(ctx context.Context, filter SearchFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Categories: filter.Categories,
		Team:       filter.Team,
		Requester:  filter.Requester,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// ListHistory returns the audit trail for a ticket.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.FieldChangeRecord, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.changes.ListByTicket(ctx, ticket.ID)
}

// ApplyFields performs one guarded field update against the ticket the
// caller read. The caller's copy supplies the expected version; a concurrent
// writer surfaces as a conflict, and the caller decides whether its decision
// still stands before retrying.
func (s *TicketService) ApplyFields(ctx context.Context, current *domain.Ticket, changes map[domain.Field]any, actor domain.Actor) (*domain.Ticket, error) {
	updated, err := s.tickets.UpdateFields(ctx, current.ID, changes, actor, current.Version)
	if err != nil {
		return nil, err
	}

	if updated.Status != current.Status {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: updated.ID,
			Actor:    actor,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: current.Status,
				NewStatus: updated.Status,
			},
		})
	}
	if updated.Priority != current.Priority {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketPriorityChanged,
			TicketID: updated.ID,
			Actor:    actor,
			Payload: events.TicketPriorityChangedPayload{
				OldPriority: current.Priority,
				NewPriority: updated.Priority,
			},
		})
	}
	return updated, nil
}

// UpdateTicketFields is the read-then-apply path for callers that do not
// track versions themselves. Conflicts are retried with a fresh read because
// the change set does not depend on the ticket's prior state.
func (s *TicketService) UpdateTicketFields(ctx context.Context, id string, changes map[domain.Field]any, actor domain.Actor) (*domain.Ticket, error) {
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		ticket, err := s.GetTicket(ctx, id)
		if err != nil {
			return nil, err
		}
		updated, err := s.ApplyFields(ctx, ticket, changes, actor)
		if err == nil {
			return updated, nil
		}
		if !util.IsConflict(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *TicketService) generateTicketKey() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TCK-%s-%s", s.clock.Now().Format("20060102"), suffix)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
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

func looksLikeEmail(addr string) bool {
	at := strings.Index(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return false
	}
	return strings.Contains(addr[at+1:], ".")
}
