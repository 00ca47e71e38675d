package redis

import (
	"context"
	"testing"

	"otp-auth-service/internal/directory"
)

func TestReserveIsExclusive(t *testing.T) {
	registry := NewReferralRegistry(newTestRedis(t), directory.NewMemoryStore())
	ctx := context.Background()

	ok, err := registry.Reserve(ctx, "ABC123")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first reservation to succeed")
	}

	ok, err = registry.Reserve(ctx, "ABC123")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if ok {
		t.Error("expected second reservation of the same code to fail")
	}
}

func TestExistsChecksReservationsAndDirectory(t *testing.T) {
	users := directory.NewMemoryStore()
	registry := NewReferralRegistry(newTestRedis(t), users)
	ctx := context.Background()

	exists, err := registry.Exists(ctx, "FRESH1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected unknown code to not exist")
	}

	if _, err := registry.Reserve(ctx, "HELD01"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	exists, _ = registry.Exists(ctx, "HELD01")
	if !exists {
		t.Error("expected reserved code to be reported as existing")
	}
}
