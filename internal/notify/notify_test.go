package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsline/helpdesk-core/internal/domain"
)

type scriptedNotifier struct {
	calls    int
	failures int
	onCall   func(attempt int)
}

func (n *scriptedNotifier) Notify(_ context.Context, _ Request) error {
	n.calls++
	if n.onCall != nil {
		n.onCall(n.calls)
	}
	if n.calls <= n.failures {
		return errors.New("transport down")
	}
	return nil
}

func testRequest() Request {
	return Request{
		Team:        domain.TeamNetwork,
		TicketID:    "t-1",
		TriggerType: domain.TriggerSLABreach,
		Severity:    domain.SeverityCritical,
		Message:     "response target exceeded",
	}
}

func TestRetrierEventualSuccess(t *testing.T) {
	t.Parallel()

	inner := &scriptedNotifier{failures: 2}
	retrier := NewRetrier(inner, 3, time.Millisecond, 4*time.Millisecond)

	if err := retrier.Notify(context.Background(), testRequest()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestRetrierExhaustsAttempts(t *testing.T) {
	t.Parallel()

	inner := &scriptedNotifier{failures: 10}
	retrier := NewRetrier(inner, 2, time.Millisecond, 4*time.Millisecond)

	err := retrier.Notify(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected the last error to surface")
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", inner.calls)
	}
}

func TestRetrierStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	inner := &scriptedNotifier{failures: 10, onCall: func(int) { cancel() }}
	retrier := NewRetrier(inner, 3, time.Hour, time.Hour)

	err := retrier.Notify(ctx, testRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected a single attempt before cancellation, got %d", inner.calls)
	}
}

func TestRetrierDefaultsOnZeroValues(t *testing.T) {
	t.Parallel()

	inner := &scriptedNotifier{}
	retrier := NewRetrier(inner, 0, 0, 0)
	if err := retrier.Notify(context.Background(), testRequest()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 attempt, got %d", inner.calls)
	}
}
