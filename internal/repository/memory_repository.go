package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/opsline/helpdesk-core/internal/clock"
	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/pkg/util"
)

// MemoryTicketRepository mirrors the postgres ticket repository in process
// memory, including the version CAS and the audit trail, for tests and
// DSN-less runs. It also serves the FieldChangeRepository reads.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	clock   clock.Clock
	tickets map[string]*domain.Ticket
	byKey   map[string]string
	changes map[string][]domain.FieldChangeRecord
}

// NewMemoryTicketRepository creates an empty in-memory ticket repository.
func NewMemoryTicketRepository(clk clock.Clock) *MemoryTicketRepository {
	return &MemoryTicketRepository{
		clock:   clk,
		tickets: make(map[string]*domain.Ticket),
		byKey:   make(map[string]string),
		changes: make(map[string][]domain.FieldChangeRecord),
	}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	ticket.Version = 1

	r.tickets[ticket.ID] = copyTicket(ticket)
	if ticket.ExternalKey != "" {
		r.byKey[ticket.ExternalKey] = ticket.ID
	}
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, util.NewNotFound("ticket", map[string]any{"id": id})
	}
	return copyTicket(ticket), nil
}

func (r *MemoryTicketRepository) GetByExternalKey(_ context.Context, key string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, util.NewNotFound("ticket", map[string]any{"external_key": key})
	}
	return copyTicket(r.tickets[id]), nil
}

func (r *MemoryTicketRepository) UpdateFields(_ context.Context, id string, changes map[domain.Field]any, actor domain.Actor, expectedVersion int64) (*domain.Ticket, error) {
	normalized, err := normalizeChanges(changes)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tickets[id]
	if !ok {
		return nil, util.NewNotFound("ticket", map[string]any{"id": id})
	}
	if current.Version != expectedVersion {
		return nil, staleVersion(id, expectedVersion, current.Version)
	}

	now := r.clock.Now()
	next := copyTicket(current)
	applied := applyChanges(next, normalized)
	reconcileResolvedAt(next, now)
	next.UpdatedAt = now
	next.Version++

	r.tickets[id] = next
	for _, change := range applied {
		r.changes[id] = append(r.changes[id], domain.FieldChangeRecord{
			ID:        uuid.NewString(),
			TicketID:  id,
			Field:     change.field,
			OldValue:  change.oldValue,
			NewValue:  change.newValue,
			Actor:     actor,
			CreatedAt: now,
		})
	}
	return copyTicket(next), nil
}

func (r *MemoryTicketRepository) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.Ticket
	for _, ticket := range r.tickets {
		if matchesFilter(ticket, filter) {
			matched = append(matched, *copyTicket(ticket))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	return paginate(matched, filter.Limit, filter.Offset), nil
}

func (r *MemoryTicketRepository) ListMonitored(_ context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 500
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Open() {
			matched = append(matched, *copyTicket(ticket))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ListByTicket implements FieldChangeRepository over the in-memory audit log.
func (r *MemoryTicketRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.FieldChangeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.changes[ticketID]
	out := make([]domain.FieldChangeRecord, len(records))
	copy(out, records)
	return out, nil
}

func matchesFilter(t *domain.Ticket, filter TicketFilter) bool {
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
		return false
	}
	if len(filter.Categories) > 0 && !containsCategory(filter.Categories, t.Category) {
		return false
	}
	if filter.Team != nil {
		if t.AssignedTeam == nil || *t.AssignedTeam != *filter.Team {
			return false
		}
	}
	if filter.Requester != nil && t.Requester != *filter.Requester {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Subject), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

func paginate(tickets []domain.Ticket, limit, offset int) []domain.Ticket {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(tickets) {
		return nil
	}
	end := offset + limit
	if end > len(tickets) {
		end = len(tickets)
	}
	return tickets[offset:end]
}

func containsStatus(list []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, p := range list {
		if p == v {
			return true
		}
	}
	return false
}

func containsCategory(list []domain.TicketCategory, v domain.TicketCategory) bool {
	for _, c := range list {
		if c == v {
			return true
		}
	}
	return false
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	if t.AssignedTeam != nil {
		team := *t.AssignedTeam
		clone.AssignedTeam = &team
	}
	if t.ResolvedAt != nil {
		ts := *t.ResolvedAt
		clone.ResolvedAt = &ts
	}
	return &clone
}

// MemoryWorkflowStateRepository keeps workflow states in process memory.
type MemoryWorkflowStateRepository struct {
	mu     sync.RWMutex
	clock  clock.Clock
	states map[string]*domain.WorkflowState
}

// NewMemoryWorkflowStateRepository creates an empty in-memory state store.
func NewMemoryWorkflowStateRepository(clk clock.Clock) *MemoryWorkflowStateRepository {
	return &MemoryWorkflowStateRepository{
		clock:  clk,
		states: make(map[string]*domain.WorkflowState),
	}
}

func (r *MemoryWorkflowStateRepository) Get(_ context.Context, ticketID string) (*domain.WorkflowState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[ticketID]
	if !ok {
		return nil, util.NewNotFound("workflow state", map[string]any{"ticket_id": ticketID})
	}
	return copyWorkflowState(state), nil
}

func (r *MemoryWorkflowStateRepository) Save(_ context.Context, state *domain.WorkflowState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if existing, ok := r.states[state.TicketID]; ok {
		state.CreatedAt = existing.CreatedAt
	} else {
		state.CreatedAt = now
	}
	state.UpdatedAt = now
	r.states[state.TicketID] = copyWorkflowState(state)
	return nil
}

func copyWorkflowState(state *domain.WorkflowState) *domain.WorkflowState {
	clone := *state
	clone.CompletedSteps = make([]domain.WorkflowStep, len(state.CompletedSteps))
	copy(clone.CompletedSteps, state.CompletedSteps)
	clone.StepData = make(map[domain.WorkflowStep]domain.StepPayload, len(state.StepData))
	for step, payload := range state.StepData {
		clone.StepData[step] = payload
	}
	return &clone
}

// MemoryResolutionAttemptRepository keeps feedback attempts in process memory.
type MemoryResolutionAttemptRepository struct {
	mu       sync.RWMutex
	clock    clock.Clock
	attempts map[string][]domain.ResolutionAttempt
}

// NewMemoryResolutionAttemptRepository creates an empty in-memory attempt store.
func NewMemoryResolutionAttemptRepository(clk clock.Clock) *MemoryResolutionAttemptRepository {
	return &MemoryResolutionAttemptRepository{
		clock:    clk,
		attempts: make(map[string][]domain.ResolutionAttempt),
	}
}

func (r *MemoryResolutionAttemptRepository) Create(_ context.Context, attempt *domain.ResolutionAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt.ID = uuid.NewString()
	attempt.CreatedAt = r.clock.Now()
	r.attempts[attempt.TicketID] = append(r.attempts[attempt.TicketID], *attempt)
	return nil
}

func (r *MemoryResolutionAttemptRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.ResolutionAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempts := r.attempts[ticketID]
	out := make([]domain.ResolutionAttempt, len(attempts))
	copy(out, attempts)
	return out, nil
}

func (r *MemoryResolutionAttemptRepository) FindByFeedback(_ context.Context, ticketID, feedback string) (*domain.ResolutionAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempts := r.attempts[ticketID]
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Feedback == feedback {
			attempt := attempts[i]
			return &attempt, nil
		}
	}
	return nil, util.NewNotFound("resolution attempt", map[string]any{"ticket_id": ticketID})
}
