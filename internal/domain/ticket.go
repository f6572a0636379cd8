package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
	TicketStatusEscalated  TicketStatus = "escalated"
)

// Valid reports whether the value is a member of the enum.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed, TicketStatusEscalated:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether the value is a member of the enum.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// TicketCategory enumerates problem domains used for routing.
type TicketCategory string

const (
	CategoryHardware      TicketCategory = "hardware"
	CategorySoftware      TicketCategory = "software"
	CategoryNetwork       TicketCategory = "network"
	CategoryAccess        TicketCategory = "access"
	CategorySecurity      TicketCategory = "security"
	CategoryGeneral       TicketCategory = "general"
	CategoryUncategorized TicketCategory = "uncategorized"
)

// Valid reports whether the value is a member of the enum.
func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryHardware, CategorySoftware, CategoryNetwork, CategoryAccess, CategorySecurity, CategoryGeneral, CategoryUncategorized:
		return true
	}
	return false
}

// Field names accepted by the store's UpdateFields operation.
type Field string

const (
	FieldSubject      Field = "subject"
	FieldDescription  Field = "description"
	FieldStatus       Field = "status"
	FieldPriority     Field = "priority"
	FieldCategory     Field = "category"
	FieldAssignedTeam Field = "assigned_team"
	FieldSLATarget    Field = "sla_target"
)

// Actor identifies who performed a mutation in audit records.
type Actor string

const (
	ActorSystem     Actor = "system"
	ActorWorkflow   Actor = "workflow-engine"
	ActorMonitor    Actor = "sla-monitor"
	ActorResolution Actor = "resolution-tracker"
	ActorAPI        Actor = "api-client"
)

// Ticket is the aggregate for support requests. Version is an optimistic
// counter bumped on every write; stale writers lose.
type Ticket struct {
	ID           string
	ExternalKey  string
	Subject      string
	Description  string
	Status       TicketStatus
	Priority     TicketPriority
	Category     TicketCategory
	AssignedTeam *TeamID
	Requester    string
	SLATarget    time.Duration
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ResolvedAt   *time.Time
	Version      int64
}

// Open reports whether the ticket still counts toward SLA monitoring.
func (t *Ticket) Open() bool {
	return t.Status == TicketStatusOpen || t.Status == TicketStatusInProgress
}
