package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestLedger(lifetime time.Duration) (*Ledger, *MemoryStore) {
	store := NewMemoryStore()
	return NewLedger(store, lifetime, zap.NewNop()), store
}

func TestIssueCreatesChallengeWithLifetime(t *testing.T) {
	ledger, _ := newTestLedger(30 * time.Minute)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger.SetClock(func() time.Time { return base })

	challenge, err := ledger.Issue(context.Background(), IssueParams{
		MobileNo: "9876543210",
		DeviceID: "dev-1",
		FCMToken: "fcm-1",
		OTP:      "123456",
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if challenge.SessionToken == "" {
		t.Error("expected a session token")
	}
	if got, want := challenge.ExpiresAt, base.Add(30*time.Minute); !got.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, got)
	}
	if challenge.VerifiedAt != nil {
		t.Error("fresh challenge must not be verified")
	}
}

func TestFindRequiresExactPair(t *testing.T) {
	ledger, _ := newTestLedger(30 * time.Minute)
	ctx := context.Background()

	challenge, err := ledger.Issue(ctx, IssueParams{MobileNo: "9876543210", OTP: "123456"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := ledger.Find(ctx, "9876543210", challenge.SessionToken); err != nil {
		t.Errorf("expected challenge to be found, got %v", err)
	}
	if _, err := ledger.Find(ctx, "9876543211", challenge.SessionToken); !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("expected ErrChallengeNotFound for wrong mobile, got %v", err)
	}
	if _, err := ledger.Find(ctx, "9876543210", "bogus-token"); !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("expected ErrChallengeNotFound for wrong token, got %v", err)
	}
}

func TestReissueLeavesOldChallengeUnreachableByToken(t *testing.T) {
	ledger, _ := newTestLedger(30 * time.Minute)
	ctx := context.Background()

	first, _ := ledger.Issue(ctx, IssueParams{MobileNo: "9876543210", OTP: "111111"})
	second, _ := ledger.Issue(ctx, IssueParams{MobileNo: "9876543210", OTP: "222222"})

	if first.SessionToken == second.SessionToken {
		t.Fatal("expected distinct session tokens per issue")
	}
	got, err := ledger.Find(ctx, "9876543210", second.SessionToken)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got.OTP != "222222" {
		t.Errorf("expected newest challenge, got OTP %q", got.OTP)
	}
}

func TestAttemptCounting(t *testing.T) {
	ledger, _ := newTestLedger(30 * time.Minute)
	ctx := context.Background()

	challenge, _ := ledger.Issue(ctx, IssueParams{MobileNo: "9876543210", OTP: "123456"})

	for i := 0; i < 3; i++ {
		if err := ledger.RecordAttempt(ctx, "9876543210", challenge.SessionToken, "000000", false); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}
	count, err := ledger.AttemptCount(ctx, "9876543210", challenge.SessionToken)
	if err != nil {
		t.Fatalf("AttemptCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 attempts, got %d", count)
	}

	// Attempts are scoped to the pair, not the mobile number.
	other, _ := ledger.Issue(ctx, IssueParams{MobileNo: "9876543210", OTP: "654321"})
	count, _ = ledger.AttemptCount(ctx, "9876543210", other.SessionToken)
	if count != 0 {
		t.Errorf("expected fresh challenge to have 0 attempts, got %d", count)
	}
}

func TestMarkVerifiedStampsChallenge(t *testing.T) {
	ledger, _ := newTestLedger(30 * time.Minute)
	ctx := context.Background()

	challenge, _ := ledger.Issue(ctx, IssueParams{MobileNo: "9876543210", OTP: "123456"})
	if err := ledger.MarkVerified(ctx, "9876543210", challenge.SessionToken, "jti-1"); err != nil {
		t.Fatalf("MarkVerified failed: %v", err)
	}

	got, _ := ledger.Find(ctx, "9876543210", challenge.SessionToken)
	if got.VerifiedAt == nil {
		t.Fatal("expected VerifiedAt to be set")
	}
	if got.CredentialID != "jti-1" {
		t.Errorf("expected credential id jti-1, got %q", got.CredentialID)
	}
}

func TestSweepExpiredRemovesOnlyExpired(t *testing.T) {
	ledger, _ := newTestLedger(30 * time.Minute)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger.SetClock(func() time.Time { return base })

	old, _ := ledger.Issue(ctx, IssueParams{MobileNo: "9876543210", OTP: "111111"})

	ledger.SetClock(func() time.Time { return base.Add(31 * time.Minute) })
	fresh, _ := ledger.Issue(ctx, IssueParams{MobileNo: "9876543211", OTP: "222222"})

	count, err := ledger.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 swept challenge, got %d", count)
	}
	if _, err := ledger.Find(ctx, "9876543210", old.SessionToken); !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("expected expired challenge to be gone, got %v", err)
	}
	if _, err := ledger.Find(ctx, "9876543211", fresh.SessionToken); err != nil {
		t.Errorf("expected live challenge to survive sweep, got %v", err)
	}
}

func TestGenerateOTPIsZeroPadded(t *testing.T) {
	for i := 0; i < 100; i++ {
		otp, err := GenerateOTP(6)
		if err != nil {
			t.Fatalf("GenerateOTP failed: %v", err)
		}
		if len(otp) != 6 {
			t.Fatalf("expected 6 digits, got %q", otp)
		}
		for _, c := range otp {
			if c < '0' || c > '9' {
				t.Fatalf("expected numeric OTP, got %q", otp)
			}
		}
	}
}

func TestNewSessionTokenIsOpaqueHex(t *testing.T) {
	a, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken failed: %v", err)
	}
	b, _ := NewSessionToken()
	if len(a) != 64 {
		t.Errorf("expected 64-character token, got %d", len(a))
	}
	if a == b {
		t.Error("expected distinct tokens")
	}
}
