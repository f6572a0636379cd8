// Package notify hands escalation notifications to an outbound transport.
// Delivery is best-effort: a failed send is logged and reported, never
// allowed to abort the sweep that raised it.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// Request carries one outbound escalation notification.
type Request struct {
	Team        domain.TeamID      `json:"team"`
	TeamName    string             `json:"team_name"`
	Channel     string             `json:"channel"`
	TicketID    string             `json:"ticket_id"`
	ExternalKey string             `json:"external_key"`
	Subject     string             `json:"subject"`
	TriggerType domain.TriggerType `json:"trigger_type"`
	Severity    domain.Severity    `json:"severity"`
	Message     string             `json:"message"`
}

// Notifier delivers escalation notifications.
type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

// LogNotifier writes notifications to the log. It stands in for a real
// transport in development and DSN-less runs.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds the log-only sender.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, req Request) error {
	n.logger.Info("notification",
		zap.String("team", string(req.Team)),
		zap.String("channel", req.Channel),
		zap.String("ticket_id", req.TicketID),
		zap.String("trigger_type", string(req.TriggerType)),
		zap.String("severity", string(req.Severity)),
		zap.String("message", req.Message),
	)
	return nil
}

// Retrier wraps a Notifier with bounded retries and exponential backoff.
type Retrier struct {
	next       Notifier
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewRetrier builds a retrying wrapper. Attempts below one default to three.
func NewRetrier(next Notifier, attempts int, backoff, maxBackoff time.Duration) *Retrier {
	if attempts < 1 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	if maxBackoff < backoff {
		maxBackoff = 2 * time.Second
	}
	return &Retrier{next: next, attempts: attempts, backoff: backoff, maxBackoff: maxBackoff}
}

func (r *Retrier) Notify(ctx context.Context, req Request) error {
	backoff := r.backoff
	timer := time.NewTimer(backoff)
	defer timer.Stop()

	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = r.next.Notify(ctx, req); err == nil {
			return nil
		}
		if attempt == r.attempts {
			break
		}
		timer.Reset(backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
	return err
}
