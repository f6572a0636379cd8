package domain

import "time"

// TriggerType enumerates escalation causes.
type TriggerType string

const (
	TriggerSLABreach     TriggerType = "sla_breach"
	TriggerSLAWarning    TriggerType = "sla_warning"
	TriggerPriorityStuck TriggerType = "priority_stuck"
	TriggerSecurityIssue TriggerType = "security_issue"
	TriggerManual        TriggerType = "manual"
)

// Severity grades alerts and triggers.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; higher is more urgent. Unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// EscalationTrigger is the single actionable outcome of one evaluation pass
// over one ticket.
type EscalationTrigger struct {
	TicketID        string
	Type            TriggerType
	Severity        Severity
	Description     string
	RecommendedTeam TeamID
	CreatedAt       time.Time
}

// SLAAlertType classifies SLA standing.
type SLAAlertType string

const (
	SLAOnTrack SLAAlertType = "on_track"
	SLAWarning SLAAlertType = "warning"
	SLABreach  SLAAlertType = "breach"
)

// SLAAlert is a transient SLA evaluation result. Alerts are computed fresh on
// every pass and never persisted.
type SLAAlert struct {
	TicketID  string
	Type      SLAAlertType
	Severity  Severity
	Message   string
	Remaining time.Duration
}
