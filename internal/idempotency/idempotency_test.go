package idempotency

import (
	"context"
	"testing"
)

func TestMemoryStoreSeenAfterRecord(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	key := Key{TicketID: "t-1", Operation: "workflow.advance.CLASSIFICATION", Fingerprint: Fingerprint([]byte(`{"a":1}`))}

	seen, err := store.Seen(ctx, key)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if seen {
		t.Fatal("fresh key must not be seen")
	}

	if err := store.Record(ctx, key); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	seen, err = store.Seen(ctx, key)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !seen {
		t.Fatal("recorded key must be seen")
	}
}

func TestMemoryStoreKeysAreIsolated(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	base := Key{TicketID: "t-1", Operation: "workflow.advance.CLASSIFICATION", Fingerprint: Fingerprint([]byte(`{"a":1}`))}
	if err := store.Record(ctx, base); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	variants := []Key{
		{TicketID: "t-2", Operation: base.Operation, Fingerprint: base.Fingerprint},
		{TicketID: base.TicketID, Operation: "workflow.advance.ASSIGNMENT", Fingerprint: base.Fingerprint},
		{TicketID: base.TicketID, Operation: base.Operation, Fingerprint: Fingerprint([]byte(`{"a":2}`))},
	}
	for _, key := range variants {
		seen, err := store.Seen(ctx, key)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if seen {
			t.Errorf("key %+v must not collide with %+v", key, base)
		}
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]byte(`{"category":"network"}`))
	b := Fingerprint([]byte(`{"category":"network"}`))
	c := Fingerprint([]byte(`{"category":"hardware"}`))

	if a != b {
		t.Error("identical payloads must fingerprint identically")
	}
	if a == c {
		t.Error("different payloads must fingerprint differently")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
