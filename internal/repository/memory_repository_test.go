package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/pkg/util"
)

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

var seedSeq atomic.Int64

func seedTicket(t *testing.T, repo *MemoryTicketRepository) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		ExternalKey: fmt.Sprintf("TCK-20250303-%08d", seedSeq.Add(1)),
		Subject:     "VPN connection drops",
		Description: "Tunnel disconnects every few minutes",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityMedium,
		Category:    domain.CategoryNetwork,
		Requester:   "sam@example.com",
		SLATarget:   8 * time.Hour,
	}
	if err := repo.Create(context.Background(), ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestMemoryCreateAssignsIdentity(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	repo := NewMemoryTicketRepository(newFakeClock(start))
	ticket := seedTicket(t, repo)

	if ticket.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if ticket.Version != 1 {
		t.Errorf("expected version 1, got %d", ticket.Version)
	}
	if !ticket.CreatedAt.Equal(start) {
		t.Errorf("expected created_at %s, got %s", start, ticket.CreatedAt)
	}

	byKey, err := repo.GetByExternalKey(context.Background(), ticket.ExternalKey)
	if err != nil {
		t.Fatalf("expected lookup by key to work, got %v", err)
	}
	if byKey.ID != ticket.ID {
		t.Errorf("key lookup returned %q, want %q", byKey.ID, ticket.ID)
	}
}

func TestMemoryGetMissingTicket(t *testing.T) {
	t.Parallel()

	repo := NewMemoryTicketRepository(newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)))
	if _, err := repo.GetByID(context.Background(), "missing"); !util.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repo.GetByExternalKey(context.Background(), "TCK-NOPE"); !util.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateFieldsAuditsOnlyRealChanges(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))
	repo := NewMemoryTicketRepository(clk)
	ticket := seedTicket(t, repo)
	clk.Advance(10 * time.Minute)

	updated, err := repo.UpdateFields(context.Background(), ticket.ID, map[domain.Field]any{
		domain.FieldPriority: "high",
		domain.FieldStatus:   "in_progress",
		// Same value as the current one: no audit record expected.
		domain.FieldSubject: "VPN connection drops",
	}, domain.ActorAPI, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
	if updated.Priority != domain.TicketPriorityHigh || updated.Status != domain.TicketStatusInProgress {
		t.Errorf("unexpected ticket state %+v", updated)
	}

	records, err := repo.ListByTicket(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(records))
	}
	byField := map[domain.Field]domain.FieldChangeRecord{}
	for _, rec := range records {
		byField[rec.Field] = rec
		if rec.Actor != domain.ActorAPI {
			t.Errorf("expected actor %q, got %q", domain.ActorAPI, rec.Actor)
		}
	}
	if rec := byField[domain.FieldPriority]; rec.OldValue != "medium" || rec.NewValue != "high" {
		t.Errorf("priority audit %q -> %q", rec.OldValue, rec.NewValue)
	}
	if rec := byField[domain.FieldStatus]; rec.OldValue != "open" || rec.NewValue != "in_progress" {
		t.Errorf("status audit %q -> %q", rec.OldValue, rec.NewValue)
	}
	if _, ok := byField[domain.FieldSubject]; ok {
		t.Error("unchanged subject must not be audited")
	}
}

func TestUpdateFieldsStaleVersionConflicts(t *testing.T) {
	t.Parallel()

	repo := NewMemoryTicketRepository(newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)))
	ticket := seedTicket(t, repo)

	if _, err := repo.UpdateFields(context.Background(), ticket.ID, map[domain.Field]any{domain.FieldPriority: "high"}, domain.ActorAPI, 1); err != nil {
		t.Fatalf("first update: %v", err)
	}

	_, err := repo.UpdateFields(context.Background(), ticket.ID, map[domain.Field]any{domain.FieldPriority: "low"}, domain.ActorAPI, 1)
	if !util.IsConflict(err) {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}

	current, err := repo.GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Priority != domain.TicketPriorityHigh {
		t.Errorf("losing write must not apply, priority is %q", current.Priority)
	}
}

func TestUpdateFieldsRejectsUnknownField(t *testing.T) {
	t.Parallel()

	repo := NewMemoryTicketRepository(newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)))
	ticket := seedTicket(t, repo)

	_, err := repo.UpdateFields(context.Background(), ticket.ID, map[domain.Field]any{domain.Field("owner"): "sam"}, domain.ActorAPI, 1)
	if !util.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	current, _ := repo.GetByID(context.Background(), ticket.ID)
	if current.Version != 1 {
		t.Errorf("rejected update must not bump the version, got %d", current.Version)
	}
}

func TestUpdateFieldsRejectsOutOfRangeEnums(t *testing.T) {
	t.Parallel()

	repo := NewMemoryTicketRepository(newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)))
	ticket := seedTicket(t, repo)

	bad := []map[domain.Field]any{
		{domain.FieldStatus: "paused"},
		{domain.FieldPriority: "urgent"},
		{domain.FieldCategory: "gadgets"},
		{domain.FieldSLATarget: "-4h"},
		{domain.FieldSubject: ""},
	}
	for _, changes := range bad {
		if _, err := repo.UpdateFields(context.Background(), ticket.ID, changes, domain.ActorAPI, 1); !util.IsValidation(err) {
			t.Errorf("changes %v: expected validation error, got %v", changes, err)
		}
	}
}

func TestUpdateFieldsEmptyChangeSetStillBumps(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))
	repo := NewMemoryTicketRepository(clk)
	ticket := seedTicket(t, repo)
	clk.Advance(time.Minute)

	updated, err := repo.UpdateFields(context.Background(), ticket.ID, map[domain.Field]any{}, domain.ActorSystem, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
	if !updated.UpdatedAt.After(ticket.UpdatedAt) {
		t.Errorf("expected updated_at to advance, got %s", updated.UpdatedAt)
	}

	records, _ := repo.ListByTicket(context.Background(), ticket.ID)
	if len(records) != 0 {
		t.Errorf("empty change set must not write audit records, got %d", len(records))
	}
}

func TestResolvedAtLifecycle(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))
	repo := NewMemoryTicketRepository(clk)
	ticket := seedTicket(t, repo)
	clk.Advance(time.Hour)

	resolved, err := repo.UpdateFields(context.Background(), ticket.ID, map[domain.Field]any{domain.FieldStatus: "resolved"}, domain.ActorWorkflow, 1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(clk.Now()) {
		t.Fatalf("expected resolved_at stamped at %s, got %v", clk.Now(), resolved.ResolvedAt)
	}

	// Closing an already-resolved ticket keeps the original stamp.
	clk.Advance(time.Hour)
	closed, err := repo.UpdateFields(context.Background(), ticket.ID, map[domain.Field]any{domain.FieldStatus: "closed"}, domain.ActorResolution, 2)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed.ResolvedAt.Equal(*resolved.ResolvedAt) {
		t.Errorf("close must keep resolved_at, got %v", closed.ResolvedAt)
	}

	reopened, err := repo.UpdateFields(context.Background(), ticket.ID, map[domain.Field]any{domain.FieldStatus: "in_progress"}, domain.ActorResolution, 3)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ResolvedAt != nil {
		t.Errorf("reopening must clear resolved_at, got %v", reopened.ResolvedAt)
	}
}

func TestAssignedTeamSetAndClear(t *testing.T) {
	t.Parallel()

	repo := NewMemoryTicketRepository(newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)))
	ticket := seedTicket(t, repo)

	assigned, err := repo.UpdateFields(context.Background(), ticket.ID, map[domain.Field]any{domain.FieldAssignedTeam: "network"}, domain.ActorWorkflow, 1)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssignedTeam == nil || *assigned.AssignedTeam != domain.TeamNetwork {
		t.Fatalf("expected network team, got %v", assigned.AssignedTeam)
	}

	cleared, err := repo.UpdateFields(context.Background(), ticket.ID, map[domain.Field]any{domain.FieldAssignedTeam: nil}, domain.ActorAPI, 2)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.AssignedTeam != nil {
		t.Fatalf("expected team cleared, got %v", cleared.AssignedTeam)
	}

	records, _ := repo.ListByTicket(context.Background(), ticket.ID)
	if len(records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(records))
	}
	if records[1].OldValue != "network" || records[1].NewValue != "" {
		t.Errorf("clear audit %q -> %q", records[1].OldValue, records[1].NewValue)
	}
}

func TestListMonitoredSkipsTerminalStates(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))
	repo := NewMemoryTicketRepository(clk)

	oldest := seedTicket(t, repo)
	clk.Advance(time.Minute)
	second := seedTicket(t, repo)
	clk.Advance(time.Minute)
	resolved := seedTicket(t, repo)
	if _, err := repo.UpdateFields(context.Background(), resolved.ID, map[domain.Field]any{domain.FieldStatus: "resolved"}, domain.ActorWorkflow, 1); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	escalated := seedTicket(t, repo)
	if _, err := repo.UpdateFields(context.Background(), escalated.ID, map[domain.Field]any{domain.FieldStatus: "escalated"}, domain.ActorAPI, 1); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if _, err := repo.UpdateFields(context.Background(), second.ID, map[domain.Field]any{domain.FieldStatus: "in_progress"}, domain.ActorWorkflow, 1); err != nil {
		t.Fatalf("progress: %v", err)
	}

	monitored, err := repo.ListMonitored(context.Background(), 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(monitored) != 2 {
		t.Fatalf("expected 2 monitored tickets, got %d", len(monitored))
	}
	if monitored[0].ID != oldest.ID {
		t.Errorf("expected oldest ticket first, got %q", monitored[0].ID)
	}
}

func TestListWithFilter(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))
	repo := NewMemoryTicketRepository(clk)

	first := seedTicket(t, repo)
	clk.Advance(time.Minute)
	second := seedTicket(t, repo)
	if _, err := repo.UpdateFields(context.Background(), second.ID, map[domain.Field]any{
		domain.FieldPriority: "high",
		domain.FieldSubject:  "Printer out of toner",
	}, domain.ActorAPI, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	high, err := repo.ListWithFilter(context.Background(), TicketFilter{Priorities: []domain.TicketPriority{domain.TicketPriorityHigh}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(high) != 1 || high[0].ID != second.ID {
		t.Fatalf("priority filter returned %d tickets", len(high))
	}

	term := "printer"
	bySearch, err := repo.ListWithFilter(context.Background(), TicketFilter{SearchTerm: &term})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(bySearch) != 1 || bySearch[0].ID != second.ID {
		t.Fatalf("search filter returned %d tickets", len(bySearch))
	}

	all, err := repo.ListWithFilter(context.Background(), TicketFilter{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(all))
	}
	if all[0].ID != second.ID || all[1].ID != first.ID {
		t.Errorf("expected newest first, got %q then %q", all[0].ID, all[1].ID)
	}

	paged, err := repo.ListWithFilter(context.Background(), TicketFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(paged) != 1 || paged[0].ID != first.ID {
		t.Fatalf("pagination returned %d tickets", len(paged))
	}
}
