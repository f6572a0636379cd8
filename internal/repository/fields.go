package repository

import (
	"fmt"
	"sort"
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/pkg/util"
)

// fieldChange pairs the before and after rendering of one changed field for
// the audit log.
type fieldChange struct {
	field    domain.Field
	oldValue string
	newValue string
}

// normalizeChanges validates a change set before any row is touched. Unknown
// fields and out-of-range enum values are rejected outright; values arriving
// from JSON (plain strings, numbers, nil) are coerced to their domain types.
func normalizeChanges(changes map[domain.Field]any) (map[domain.Field]any, error) {
	out := make(map[domain.Field]any, len(changes))
	for field, value := range changes {
		normalized, err := normalizeFieldValue(field, value)
		if err != nil {
			return nil, err
		}
		out[field] = normalized
	}
	return out, nil
}

func normalizeFieldValue(field domain.Field, value any) (any, error) {
	switch field {
	case domain.FieldSubject:
		s, ok := value.(string)
		if !ok || s == "" {
			return nil, util.NewValidationError("subject must be a non-empty string", fieldDetails(field, value))
		}
		return s, nil

	case domain.FieldDescription:
		s, ok := value.(string)
		if !ok {
			return nil, util.NewValidationError("description must be a string", fieldDetails(field, value))
		}
		return s, nil

	case domain.FieldStatus:
		status := domain.TicketStatus(stringValue(value))
		if !status.Valid() {
			return nil, util.NewValidationError("status value is out of range", fieldDetails(field, value))
		}
		return status, nil

	case domain.FieldPriority:
		priority := domain.TicketPriority(stringValue(value))
		if !priority.Valid() {
			return nil, util.NewValidationError("priority value is out of range", fieldDetails(field, value))
		}
		return priority, nil

	case domain.FieldCategory:
		category := domain.TicketCategory(stringValue(value))
		if !category.Valid() {
			return nil, util.NewValidationError("category value is out of range", fieldDetails(field, value))
		}
		return category, nil

	case domain.FieldAssignedTeam:
		if value == nil {
			return (*domain.TeamID)(nil), nil
		}
		id := domain.TeamID(stringValue(value))
		if id == "" {
			return (*domain.TeamID)(nil), nil
		}
		return &id, nil

	case domain.FieldSLATarget:
		d, err := durationValue(value)
		if err != nil || d <= 0 {
			return nil, util.NewValidationError("sla_target must be a positive duration", fieldDetails(field, value))
		}
		return d, nil
	}

	return nil, util.NewValidationError("unknown ticket field", fieldDetails(field, value))
}

// applyChanges mutates the ticket in place and reports the fields whose
// values actually changed, in stable field order. Values must already be
// normalized.
func applyChanges(t *domain.Ticket, changes map[domain.Field]any) []fieldChange {
	fields := make([]domain.Field, 0, len(changes))
	for field := range changes {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	var applied []fieldChange
	for _, field := range fields {
		value := changes[field]
		var old, next string

		switch field {
		case domain.FieldSubject:
			old, next = t.Subject, value.(string)
			t.Subject = value.(string)
		case domain.FieldDescription:
			old, next = t.Description, value.(string)
			t.Description = value.(string)
		case domain.FieldStatus:
			old, next = string(t.Status), string(value.(domain.TicketStatus))
			t.Status = value.(domain.TicketStatus)
		case domain.FieldPriority:
			old, next = string(t.Priority), string(value.(domain.TicketPriority))
			t.Priority = value.(domain.TicketPriority)
		case domain.FieldCategory:
			old, next = string(t.Category), string(value.(domain.TicketCategory))
			t.Category = value.(domain.TicketCategory)
		case domain.FieldAssignedTeam:
			old = teamString(t.AssignedTeam)
			team := value.(*domain.TeamID)
			next = teamString(team)
			t.AssignedTeam = team
		case domain.FieldSLATarget:
			old, next = t.SLATarget.String(), value.(time.Duration).String()
			t.SLATarget = value.(time.Duration)
		}

		if old == next {
			continue
		}
		applied = append(applied, fieldChange{field: field, oldValue: old, newValue: next})
	}
	return applied
}

// reconcileResolvedAt keeps resolved_at consistent with status transitions:
// entering resolved or closed stamps it once, reopening clears it.
func reconcileResolvedAt(t *domain.Ticket, now time.Time) {
	switch t.Status {
	case domain.TicketStatusResolved, domain.TicketStatusClosed:
		if t.ResolvedAt == nil {
			ts := now
			t.ResolvedAt = &ts
		}
	case domain.TicketStatusOpen, domain.TicketStatusInProgress:
		t.ResolvedAt = nil
	}
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case domain.TicketStatus:
		return string(v)
	case domain.TicketPriority:
		return string(v)
	case domain.TicketCategory:
		return string(v)
	case domain.TeamID:
		return string(v)
	case *domain.TeamID:
		if v == nil {
			return ""
		}
		return string(*v)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", value)
}

func durationValue(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		return time.ParseDuration(v)
	}
	return 0, fmt.Errorf("unsupported duration value %T", value)
}

func teamString(team *domain.TeamID) string {
	if team == nil {
		return ""
	}
	return string(*team)
}

func fieldDetails(field domain.Field, value any) map[string]any {
	return map[string]any{"field": string(field), "value": fmt.Sprintf("%v", value)}
}
