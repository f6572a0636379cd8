package domain

import "time"

// FieldChangeRecord is an immutable audit entry for one changed ticket field.
// A multi-field update writes one record per field in the same transaction.
type FieldChangeRecord struct {
	ID        string
	TicketID  string
	Field     Field
	OldValue  string
	NewValue  string
	Actor     Actor
	CreatedAt time.Time
}
