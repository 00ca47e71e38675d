package verifier

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"otp-auth-service/internal/credential"
	"otp-auth-service/internal/directory"
	"otp-auth-service/internal/session"
)

type fixture struct {
	verifier  *Verifier
	ledger    *session.Ledger
	directory *directory.Directory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	ledger := session.NewLedger(session.NewMemoryStore(), 30*time.Minute, logger)
	dir := directory.New(directory.NewMemoryStore(), directory.NewMemorySequence(), logger)
	issuer := credential.NewIssuer([]byte("test-secret"), 7*24*time.Hour)
	return &fixture{
		verifier:  New(ledger, dir, issuer, 5, logger),
		ledger:    ledger,
		directory: dir,
	}
}

func (f *fixture) issue(t *testing.T, mobileNo, otp string) string {
	t.Helper()
	challenge, err := f.ledger.Issue(context.Background(), session.IssueParams{
		MobileNo: mobileNo,
		DeviceID: "dev-1",
		FCMToken: "fcm-1",
		OTP:      otp,
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return challenge.SessionToken
}

func TestVerifyCorrectCodeRegistersNewUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.issue(t, "9876543210", "123456")

	result, err := f.verifier.Verify(ctx, "9876543210", token, "123456")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Outcome != OutcomeVerified {
		t.Fatalf("expected OutcomeVerified, got %v", result.Outcome)
	}
	if result.UserStatus != UserStatusNew {
		t.Errorf("expected new user status, got %q", result.UserStatus)
	}
	if result.Token == "" || result.TokenType != "Bearer" {
		t.Errorf("expected a Bearer credential, got %q %q", result.TokenType, result.Token)
	}
	if result.User.UserNumber != 1 {
		t.Errorf("expected user number 1, got %d", result.User.UserNumber)
	}

	challenge, err := f.ledger.Find(ctx, "9876543210", token)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if challenge.VerifiedAt == nil {
		t.Error("expected challenge to be marked verified")
	}
	if challenge.CredentialID == "" {
		t.Error("expected credential id on verified challenge")
	}
}

func TestVerifyExistingUserKeepsIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing, err := f.directory.Register(ctx, "9876543210", "dev-0", "fcm-0", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	token := f.issue(t, "9876543210", "123456")
	result, err := f.verifier.Verify(ctx, "9876543210", token, "123456")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.UserStatus != UserStatusExisting {
		t.Errorf("expected existing user status, got %q", result.UserStatus)
	}
	if result.User.UserID != existing.UserID {
		t.Errorf("identity changed on re-login: %q vs %q", result.User.UserID, existing.UserID)
	}

	user, _ := f.directory.GetByMobile(ctx, "9876543210")
	if user.LoginCount != 1 {
		t.Errorf("expected login count 1, got %d", user.LoginCount)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.issue(t, "9876543210", "123456")

	result, err := f.verifier.Verify(ctx, "9876543210", token, "000000")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Outcome != OutcomeInvalid {
		t.Errorf("expected OutcomeInvalid, got %v", result.Outcome)
	}

	count, _ := f.ledger.AttemptCount(ctx, "9876543210", token)
	if count != 1 {
		t.Errorf("expected 1 recorded attempt, got %d", count)
	}

	// The challenge survives a wrong code; the right one still works.
	result, err = f.verifier.Verify(ctx, "9876543210", token, "123456")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Outcome != OutcomeVerified {
		t.Errorf("expected OutcomeVerified after retry, got %v", result.Outcome)
	}
}

func TestVerifyUnknownSessionRecordsNoAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.verifier.Verify(ctx, "9876543210", "bogus-token", "123456")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Outcome != OutcomeNotFound {
		t.Errorf("expected OutcomeNotFound, got %v", result.Outcome)
	}

	count, _ := f.ledger.AttemptCount(ctx, "9876543210", "bogus-token")
	if count != 0 {
		t.Errorf("unknown session must not consume attempts, got %d", count)
	}
}

func TestVerifyExpiredChallengeBeatsCorrectCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	f.ledger.SetClock(func() time.Time { return base })
	token := f.issue(t, "9876543210", "123456")

	late := func() time.Time { return base.Add(31 * time.Minute) }
	f.ledger.SetClock(late)
	f.verifier.SetClock(late)

	result, err := f.verifier.Verify(ctx, "9876543210", token, "123456")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Outcome != OutcomeExpired {
		t.Errorf("expected OutcomeExpired, got %v", result.Outcome)
	}

	count, _ := f.ledger.AttemptCount(ctx, "9876543210", token)
	if count != 1 {
		t.Errorf("expected expired attempt to be recorded, got %d", count)
	}
}

func TestVerifyRateLimitEngagesAfterCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.issue(t, "9876543210", "123456")

	for i := 0; i < 5; i++ {
		result, err := f.verifier.Verify(ctx, "9876543210", token, "000000")
		if err != nil {
			t.Fatalf("Verify failed on attempt %d: %v", i+1, err)
		}
		if result.Outcome != OutcomeInvalid {
			t.Fatalf("attempt %d: expected OutcomeInvalid, got %v", i+1, result.Outcome)
		}
	}

	// The sixth attempt is refused before the code is even compared, so the
	// correct code no longer unlocks the challenge.
	result, err := f.verifier.Verify(ctx, "9876543210", token, "123456")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Outcome != OutcomeRateLimited {
		t.Errorf("expected OutcomeRateLimited, got %v", result.Outcome)
	}

	count, _ := f.ledger.AttemptCount(ctx, "9876543210", token)
	if count != 5 {
		t.Errorf("rate-limited call must not record an attempt, got %d", count)
	}
}

func TestVerifySuccessConsumesOneAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.issue(t, "9876543210", "123456")

	if _, err := f.verifier.Verify(ctx, "9876543210", token, "123456"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	count, _ := f.ledger.AttemptCount(ctx, "9876543210", token)
	if count != 1 {
		t.Errorf("expected the successful attempt to be recorded, got %d", count)
	}
}
