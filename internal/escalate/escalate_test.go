package escalate

import (
	"testing"
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/internal/routing"
)

func testTicket(priority domain.TicketPriority, category domain.TicketCategory, status domain.TicketStatus, created time.Time) *domain.Ticket {
	return &domain.Ticket{
		ID:        "t-1",
		Priority:  priority,
		Category:  category,
		Status:    status,
		SLATarget: 0,
		CreatedAt: created,
	}
}

func TestEvaluateNothingFires(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(routing.Default())
	ticket := testTicket(domain.TicketPriorityMedium, domain.CategoryGeneral, domain.TicketStatusOpen, created)

	if trigger := e.Evaluate(ticket, created.Add(time.Hour)); trigger != nil {
		t.Fatalf("expected no trigger, got %q", trigger.Type)
	}
}

func TestEvaluateBreachBeatsSecurityOnEqualSeverity(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(routing.Default())
	ticket := testTicket(domain.TicketPriorityCritical, domain.CategorySecurity, domain.TicketStatusInProgress, created)

	// Breach (critical) and security (critical) fire together; the fixed
	// order puts the breach first.
	trigger := e.Evaluate(ticket, created.Add(3*time.Hour))
	if trigger == nil {
		t.Fatal("expected a trigger")
	}
	if trigger.Type != domain.TriggerSLABreach {
		t.Errorf("expected sla_breach to win, got %q", trigger.Type)
	}
	if trigger.Severity != domain.SeverityCritical {
		t.Errorf("expected critical severity, got %q", trigger.Severity)
	}
	if trigger.RecommendedTeam != domain.TeamSecurity {
		t.Errorf("expected security team for security category, got %q", trigger.RecommendedTeam)
	}
}

func TestEvaluateSecurityFiresRegardlessOfAge(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(routing.Default())
	ticket := testTicket(domain.TicketPriorityLow, domain.CategorySecurity, domain.TicketStatusOpen, created)

	trigger := e.Evaluate(ticket, created.Add(5*time.Minute))
	if trigger == nil {
		t.Fatal("expected a trigger")
	}
	if trigger.Type != domain.TriggerSecurityIssue {
		t.Errorf("expected security_issue, got %q", trigger.Type)
	}
	if trigger.Severity != domain.SeverityCritical {
		t.Errorf("expected critical severity, got %q", trigger.Severity)
	}
	if trigger.RecommendedTeam != domain.TeamSecurity {
		t.Errorf("expected security team, got %q", trigger.RecommendedTeam)
	}
}

func TestEvaluateStuckHighPriority(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(routing.Default())
	ticket := testTicket(domain.TicketPriorityHigh, domain.CategoryHardware, domain.TicketStatusOpen, created)

	// Two hours in: outside the 4h target's warning window, but exactly at
	// the stuck threshold.
	trigger := e.Evaluate(ticket, created.Add(2*time.Hour))
	if trigger == nil {
		t.Fatal("expected a trigger")
	}
	if trigger.Type != domain.TriggerPriorityStuck {
		t.Errorf("expected priority_stuck, got %q", trigger.Type)
	}
	if trigger.Severity != domain.SeverityHigh {
		t.Errorf("expected high severity, got %q", trigger.Severity)
	}
	if trigger.RecommendedTeam != domain.TeamHardware {
		t.Errorf("expected hardware team, got %q", trigger.RecommendedTeam)
	}
}

func TestEvaluateStuckRequiresOpenStatus(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(routing.Default())
	ticket := testTicket(domain.TicketPriorityHigh, domain.CategoryHardware, domain.TicketStatusInProgress, created)

	if trigger := e.Evaluate(ticket, created.Add(2*time.Hour)); trigger != nil {
		t.Fatalf("expected no trigger for a ticket already in progress, got %q", trigger.Type)
	}
}

func TestEvaluateStuckRequiresElevatedPriority(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(routing.Default())
	ticket := testTicket(domain.TicketPriorityMedium, domain.CategoryGeneral, domain.TicketStatusOpen, created)

	// Medium tickets never raise priority_stuck; at 3h the 8h target is not
	// in its warning window either.
	if trigger := e.Evaluate(ticket, created.Add(3*time.Hour)); trigger != nil {
		t.Fatalf("expected no trigger, got %q", trigger.Type)
	}
}

func TestEvaluateStuckBeatsWarningOnEqualSeverity(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(routing.Default())
	ticket := testTicket(domain.TicketPriorityHigh, domain.CategoryNetwork, domain.TicketStatusOpen, created)

	// 40 minutes to deadline: sla_warning at high severity and
	// priority_stuck at high severity both fire.
	trigger := e.Evaluate(ticket, created.Add(3*time.Hour+20*time.Minute))
	if trigger == nil {
		t.Fatal("expected a trigger")
	}
	if trigger.Type != domain.TriggerPriorityStuck {
		t.Errorf("expected priority_stuck to win the tie, got %q", trigger.Type)
	}
}

func TestEvaluateBreachBeatsStuck(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(routing.Default())
	ticket := testTicket(domain.TicketPriorityHigh, domain.CategoryNetwork, domain.TicketStatusOpen, created)

	trigger := e.Evaluate(ticket, created.Add(5*time.Hour))
	if trigger == nil {
		t.Fatal("expected a trigger")
	}
	if trigger.Type != domain.TriggerSLABreach {
		t.Errorf("expected sla_breach over priority_stuck, got %q", trigger.Type)
	}
	if trigger.Severity != domain.SeverityCritical {
		t.Errorf("expected critical severity, got %q", trigger.Severity)
	}
}

func TestManualTrigger(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(routing.Default())
	ticket := testTicket(domain.TicketPriorityMedium, domain.CategorySoftware, domain.TicketStatusOpen, now.Add(-time.Hour))

	trigger := e.Manual(ticket, "customer called twice", now)
	if trigger.Type != domain.TriggerManual {
		t.Errorf("expected manual trigger, got %q", trigger.Type)
	}
	if trigger.Severity != domain.SeverityHigh {
		t.Errorf("expected high severity, got %q", trigger.Severity)
	}
	if trigger.Description != "customer called twice" {
		t.Errorf("unexpected description %q", trigger.Description)
	}

	fallback := e.Manual(ticket, "", now)
	if fallback.Description != "manually escalated" {
		t.Errorf("expected default description, got %q", fallback.Description)
	}
}
