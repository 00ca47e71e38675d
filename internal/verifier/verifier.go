package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"otp-auth-service/internal/credential"
	"otp-auth-service/internal/directory"
	"otp-auth-service/internal/model"
	"otp-auth-service/internal/session"
	"otp-auth-service/internal/util"
)

// Outcome classifies one verification call. Every outcome is terminal for
// that call; the caller may retry against the same challenge while it is
// unexpired and under the attempt ceiling.
type Outcome int

const (
	OutcomeVerified Outcome = iota
	OutcomeInvalid
	OutcomeExpired
	OutcomeNotFound
	OutcomeRateLimited
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeExpired:
		return "expired"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

const (
	UserStatusNew      = "new"
	UserStatusExisting = "existing"
)

// Result is the classified outcome of a verification call. The identity and
// credential fields are set only when Outcome is OutcomeVerified.
type Result struct {
	Outcome    Outcome
	User       *model.User
	UserStatus string
	Token      string
	TokenType  string
	ExpiresIn  int64
}

// Verifier orchestrates the rate-limit gate, ledger lookup, expiry check
// and code comparison, then resolves identity and mints a credential on
// success.
type Verifier struct {
	ledger      *session.Ledger
	directory   *directory.Directory
	issuer      *credential.Issuer
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

func New(ledger *session.Ledger, dir *directory.Directory, issuer *credential.Issuer, maxAttempts int, logger *zap.Logger) *Verifier {
	return &Verifier{
		ledger:      ledger,
		directory:   dir,
		issuer:      issuer,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock overrides the verifier's time source. Intended for tests.
func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}

// Verify classifies one submitted code. Checks run in a fixed order:
// attempt ceiling first (so a saturated session never leaks timing about the
// stored code), then lookup, then expiry, then comparison.
func (v *Verifier) Verify(ctx context.Context, mobileNo, sessionToken, code string) (*Result, error) {
	count, err := v.ledger.AttemptCount(ctx, mobileNo, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("failed to count verification attempts: %w", err)
	}
	if count >= v.maxAttempts {
		v.logger.Warn("Verification rate limit exceeded",
			util.String("mobile_no", mobileNo),
			util.Int("attempts", count),
			util.Int("max_attempts", v.maxAttempts))
		return &Result{Outcome: OutcomeRateLimited}, nil
	}

	challenge, err := v.ledger.Find(ctx, mobileNo, sessionToken)
	if err != nil {
		if errors.Is(err, session.ErrChallengeNotFound) {
			// An unknown session is not chargeable to an attempt budget.
			return &Result{Outcome: OutcomeNotFound}, nil
		}
		return nil, fmt.Errorf("failed to look up login challenge: %w", err)
	}

	if challenge.Expired(v.now().UTC()) {
		if err := v.ledger.RecordAttempt(ctx, mobileNo, sessionToken, code, false); err != nil {
			return nil, err
		}
		return &Result{Outcome: OutcomeExpired}, nil
	}

	if code != challenge.OTP {
		if err := v.ledger.RecordAttempt(ctx, mobileNo, sessionToken, code, false); err != nil {
			return nil, err
		}
		v.logger.Info("OTP verification failed",
			util.String("mobile_no", mobileNo),
			util.Int("attempts", count+1))
		return &Result{Outcome: OutcomeInvalid}, nil
	}

	if err := v.ledger.RecordAttempt(ctx, mobileNo, sessionToken, code, true); err != nil {
		return nil, err
	}

	result, err := v.resolveIdentity(ctx, challenge)
	if err != nil {
		return nil, err
	}

	v.logger.Info("OTP verified",
		util.String("mobile_no", mobileNo),
		util.String("user_id", result.User.UserID),
		util.String("user_status", result.UserStatus))

	return result, nil
}

// resolveIdentity registers the user if absent, updates login stats, mints
// the bearer credential and stamps the challenge with it.
func (v *Verifier) resolveIdentity(ctx context.Context, challenge *model.LoginChallenge) (*Result, error) {
	user, err := v.directory.GetByMobile(ctx, challenge.MobileNo)
	status := UserStatusExisting
	switch {
	case err == nil:
	case errors.Is(err, directory.ErrUserNotFound):
		user, err = v.directory.Register(ctx, challenge.MobileNo, challenge.DeviceID, challenge.FCMToken, challenge.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to register user: %w", err)
		}
		status = UserStatusNew
	default:
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	if err := v.directory.UpdateLoginStats(ctx, challenge.MobileNo); err != nil {
		return nil, fmt.Errorf("failed to update login stats: %w", err)
	}

	token, claims, err := v.issuer.Mint(user.UserID, user.UserNumber, user.MobileNo, challenge.DeviceID, challenge.FCMToken)
	if err != nil {
		return nil, fmt.Errorf("failed to mint credential: %w", err)
	}

	if err := v.ledger.MarkVerified(ctx, challenge.MobileNo, challenge.SessionToken, claims.ID); err != nil {
		return nil, fmt.Errorf("failed to mark challenge verified: %w", err)
	}

	return &Result{
		Outcome:    OutcomeVerified,
		User:       user,
		UserStatus: status,
		Token:      token,
		TokenType:  "Bearer",
		ExpiresIn:  int64(v.issuer.Lifetime().Seconds()),
	}, nil
}
