package escalate

import (
	"fmt"
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/internal/routing"
	"github.com/opsline/helpdesk-core/internal/sla"
)

// stuckAfter is how long a high or critical ticket may sit in open without
// entering progress before it raises a priority_stuck trigger.
const stuckAfter = 2 * time.Hour

// triggerRank breaks severity ties between co-firing conditions.
var triggerRank = map[domain.TriggerType]int{
	domain.TriggerSLABreach:     4,
	domain.TriggerSecurityIssue: 3,
	domain.TriggerPriorityStuck: 2,
	domain.TriggerSLAWarning:    1,
}

// Evaluator derives at most one escalation trigger per ticket per pass.
type Evaluator struct {
	table *routing.Table
}

// NewEvaluator builds an evaluator backed by the given routing table.
func NewEvaluator(table *routing.Table) *Evaluator {
	return &Evaluator{table: table}
}

// Evaluate inspects one ticket at now and returns the single winning trigger,
// or nil when nothing fires. When several conditions fire together the
// highest severity wins; equal severities fall back to the fixed order
// sla_breach > security_issue > priority_stuck > sla_warning.
func (e *Evaluator) Evaluate(t *domain.Ticket, now time.Time) *domain.EscalationTrigger {
	var candidates []*domain.EscalationTrigger

	alert := sla.Check(t, now)
	switch alert.Type {
	case domain.SLABreach:
		candidates = append(candidates, e.trigger(t, domain.TriggerSLABreach, domain.SeverityCritical, alert.Message, now))
	case domain.SLAWarning:
		candidates = append(candidates, e.trigger(t, domain.TriggerSLAWarning, alert.Severity, alert.Message, now))
	}

	// Security tickets escalate regardless of SLA standing or age.
	if t.Category == domain.CategorySecurity {
		desc := "security category ticket requires security team review"
		candidates = append(candidates, e.trigger(t, domain.TriggerSecurityIssue, domain.SeverityCritical, desc, now))
	}

	if isStuck(t, now) {
		desc := fmt.Sprintf("%s priority ticket still open after %s", t.Priority, now.Sub(t.CreatedAt).Round(time.Minute))
		candidates = append(candidates, e.trigger(t, domain.TriggerPriorityStuck, domain.SeverityHigh, desc, now))
	}

	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Severity.Rank() > best.Severity.Rank() {
			best = c
			continue
		}
		if c.Severity.Rank() == best.Severity.Rank() && triggerRank[c.Type] > triggerRank[best.Type] {
			best = c
		}
	}
	return best
}

// Manual builds an operator-raised trigger outside the evaluation rules.
func (e *Evaluator) Manual(t *domain.Ticket, reason string, now time.Time) *domain.EscalationTrigger {
	if reason == "" {
		reason = "manually escalated"
	}
	return e.trigger(t, domain.TriggerManual, domain.SeverityHigh, reason, now)
}

func (e *Evaluator) trigger(t *domain.Ticket, typ domain.TriggerType, sev domain.Severity, desc string, now time.Time) *domain.EscalationTrigger {
	return &domain.EscalationTrigger{
		TicketID:        t.ID,
		Type:            typ,
		Severity:        sev,
		Description:     desc,
		RecommendedTeam: e.table.TeamFor(typ, t.Category).ID,
		CreatedAt:       now,
	}
}

func isStuck(t *domain.Ticket, now time.Time) bool {
	if t.Priority != domain.TicketPriorityHigh && t.Priority != domain.TicketPriorityCritical {
		return false
	}
	if t.Status != domain.TicketStatusOpen {
		return false
	}
	return now.Sub(t.CreatedAt) >= stuckAfter
}
