package service

import (
	"context"
	"sync"
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/internal/events"
	"github.com/opsline/helpdesk-core/internal/idempotency"
	"github.com/opsline/helpdesk-core/internal/knowledge"
	"github.com/opsline/helpdesk-core/internal/repository"
	"github.com/opsline/helpdesk-core/pkg/util"
)

var _ events.Dispatcher = (*captureDispatcher)(nil)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureDispatcher records published events for assertions.
type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

var _ repository.TicketRepository = (*conflictingTicketRepo)(nil)

// conflictingTicketRepo injects version conflicts into the first N update
// calls before delegating.
type conflictingTicketRepo struct {
	repository.TicketRepository
	mu        sync.Mutex
	conflicts int
	updates   int
}

func (r *conflictingTicketRepo) UpdateFields(ctx context.Context, id string, changes map[domain.Field]any, actor domain.Actor, expectedVersion int64) (*domain.Ticket, error) {
	r.mu.Lock()
	r.updates++
	inject := r.conflicts > 0
	if inject {
		r.conflicts--
	}
	r.mu.Unlock()
	if inject {
		return nil, util.NewConflict("ticket was modified concurrently", map[string]any{"id": id})
	}
	return r.TicketRepository.UpdateFields(ctx, id, changes, actor, expectedVersion)
}

var _ knowledge.Searcher = (*failingSearcher)(nil)

type failingSearcher struct {
	err error
}

func (s *failingSearcher) Search(context.Context, string, domain.TicketCategory, int) ([]knowledge.Match, error) {
	return nil, s.err
}

type ticketFixture struct {
	clock      *fakeClock
	repo       *repository.MemoryTicketRepository
	dispatcher *captureDispatcher
	tickets    *TicketService
}

func newTicketFixture() *ticketFixture {
	clk := newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))
	repo := repository.NewMemoryTicketRepository(clk)
	dispatcher := &captureDispatcher{}
	tickets := NewTicketService(TicketDependencies{
		TicketRepo: repo,
		ChangeRepo: repo,
		Dispatcher: dispatcher,
		Clock:      clk,
	})
	return &ticketFixture{clock: clk, repo: repo, dispatcher: dispatcher, tickets: tickets}
}

type workflowFixture struct {
	*ticketFixture
	states   *repository.MemoryWorkflowStateRepository
	idem     *idempotency.MemoryStore
	workflow *WorkflowService
}

func newWorkflowFixture() *workflowFixture {
	base := newTicketFixture()
	states := repository.NewMemoryWorkflowStateRepository(base.clock)
	idem := idempotency.NewMemoryStore()
	workflow := NewWorkflowService(WorkflowDependencies{
		Tickets:     base.tickets,
		StateRepo:   states,
		Idempotency: idem,
		Searcher:    knowledge.NewMemoryIndex(),
		Dispatcher:  base.dispatcher,
		Clock:       base.clock,
	})
	return &workflowFixture{ticketFixture: base, states: states, idem: idem, workflow: workflow}
}

type feedbackFixture struct {
	*ticketFixture
	attempts *repository.MemoryResolutionAttemptRepository
	feedback *FeedbackService
}

func newFeedbackFixture() *feedbackFixture {
	base := newTicketFixture()
	attempts := repository.NewMemoryResolutionAttemptRepository(base.clock)
	svc := NewFeedbackService(FeedbackDependencies{
		Tickets:     base.tickets,
		AttemptRepo: attempts,
		Dispatcher:  base.dispatcher,
		Clock:       base.clock,
	})
	return &feedbackFixture{ticketFixture: base, attempts: attempts, feedback: svc}
}

func validInput() CreateTicketInput {
	return CreateTicketInput{
		Subject:     "VPN connection drops",
		Description: "Tunnel disconnects every few minutes when working remotely",
		Requester:   "sam@example.com",
	}
}
