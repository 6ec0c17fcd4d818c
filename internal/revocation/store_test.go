package revocation

import (
	"context"
	"fmt"
	"testing"
)

func TestRevokeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if err := store.Revoke(ctx, "jti-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := store.Revoke(ctx, "jti-1"); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one entry, got %d", store.Len())
	}
	revoked, err := store.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatalf("jti-1 should be revoked")
	}
	revoked, err = store.IsRevoked(ctx, "jti-2")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatalf("jti-2 should not be revoked")
	}
}

func TestRevokeRejectsEmptyJTI(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if err := store.Revoke(ctx, "  "); err == nil {
		t.Fatalf("expected error for blank jti")
	}
	if _, err := store.IsRevoked(ctx, ""); err == nil {
		t.Fatalf("expected error for blank jti")
	}
}

func TestFIFOEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(WithCapacity(3))

	for i := 0; i < 5; i++ {
		if err := store.Revoke(ctx, fmt.Sprintf("jti-%d", i)); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
	}
	if store.Len() != 3 {
		t.Fatalf("expected capacity 3, got %d", store.Len())
	}
	// The two oldest entries were evicted and are re-admitted.
	for _, jti := range []string{"jti-0", "jti-1"} {
		revoked, err := store.IsRevoked(ctx, jti)
		if err != nil {
			t.Fatalf("IsRevoked: %v", err)
		}
		if revoked {
			t.Fatalf("%s should have been evicted", jti)
		}
	}
	for _, jti := range []string{"jti-2", "jti-3", "jti-4"} {
		revoked, err := store.IsRevoked(ctx, jti)
		if err != nil {
			t.Fatalf("IsRevoked: %v", err)
		}
		if !revoked {
			t.Fatalf("%s should still be revoked", jti)
		}
	}
}
