package sla

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// ErrMalformedTarget reports an unparseable legacy SLA target string. Callers
// log it and keep the fallback value; it never aborts an evaluation.
var ErrMalformedTarget = errors.New("malformed sla target")

const (
	criticalTarget = 2 * time.Hour
	highTarget     = 4 * time.Hour
	mediumTarget   = 8 * time.Hour
	lowTarget      = 24 * time.Hour

	// warningFraction is the remaining share of the target at which a ticket
	// enters the warning window.
	warningFraction = 0.2

	// urgentRemaining bumps a warning from medium to high severity.
	urgentRemaining = time.Hour
)

// TargetFor maps a priority to its response target. Unknown priorities get
// the medium target.
func TargetFor(priority domain.TicketPriority) time.Duration {
	switch priority {
	case domain.TicketPriorityCritical:
		return criticalTarget
	case domain.TicketPriorityHigh:
		return highTarget
	case domain.TicketPriorityMedium:
		return mediumTarget
	case domain.TicketPriorityLow:
		return lowTarget
	}
	return mediumTarget
}

// Check evaluates a ticket's SLA standing at now. The result is computed
// fresh on every call and is never persisted.
func Check(t *domain.Ticket, now time.Time) domain.SLAAlert {
	target := t.SLATarget
	if target <= 0 {
		target = TargetFor(t.Priority)
	}

	remaining := t.CreatedAt.Add(target).Sub(now)

	alert := domain.SLAAlert{
		TicketID:  t.ID,
		Remaining: remaining,
	}

	switch {
	case remaining <= 0:
		alert.Type = domain.SLABreach
		alert.Severity = domain.SeverityCritical
		alert.Message = fmt.Sprintf("response target of %s exceeded by %s", formatDuration(target), formatDuration(-remaining))
	case float64(remaining) <= float64(target)*warningFraction:
		alert.Type = domain.SLAWarning
		if remaining <= urgentRemaining {
			alert.Severity = domain.SeverityHigh
		} else {
			alert.Severity = domain.SeverityMedium
		}
		alert.Message = fmt.Sprintf("response due within %s", formatDuration(remaining))
	default:
		alert.Type = domain.SLAOnTrack
		alert.Severity = domain.SeverityLow
		alert.Message = fmt.Sprintf("%s remaining", formatDuration(remaining))
	}

	return alert
}

// ParseTarget converts a legacy target string such as "4 hours", "2 days" or
// "30 minutes" into a duration. Plain Go durations ("4h30m") are accepted
// too. Malformed input returns the medium fallback alongside
// ErrMalformedTarget so callers can warn without crashing.
func ParseTarget(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return mediumTarget, fmt.Errorf("%w: empty value", ErrMalformedTarget)
	}

	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, nil
	}

	fields := strings.Fields(s)
	if len(fields) != 2 {
		return mediumTarget, fmt.Errorf("%w: %q", ErrMalformedTarget, raw)
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return mediumTarget, fmt.Errorf("%w: %q", ErrMalformedTarget, raw)
	}

	switch strings.TrimSuffix(fields[1], "s") {
	case "minute", "min":
		return time.Duration(n) * time.Minute, nil
	case "hour", "hr":
		return time.Duration(n) * time.Hour, nil
	case "day":
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return mediumTarget, fmt.Errorf("%w: %q", ErrMalformedTarget, raw)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	return d.Round(time.Minute).String()
}
