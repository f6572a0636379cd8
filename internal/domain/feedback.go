package domain

import "time"

// ResolutionDecision is the outcome of processing requester feedback.
type ResolutionDecision string

const (
	DecisionClose  ResolutionDecision = "close"
	DecisionReopen ResolutionDecision = "reopen"
)

// ResolutionAttempt records one processed piece of requester feedback and the
// decision it produced. Attempts double as the idempotency log: re-submitting
// the exact same text replays the stored decision.
type ResolutionAttempt struct {
	ID            string
	TicketID      string
	AttemptNumber int
	Feedback      string
	Decision      ResolutionDecision
	CreatedAt     time.Time
}
