package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"otp-auth-service/internal/model"
	"otp-auth-service/internal/util"
)

var ErrChallengeNotFound = errors.New("login challenge not found")

// Store persists login challenges and their verification attempts.
type Store interface {
	Insert(ctx context.Context, challenge *model.LoginChallenge) error
	Find(ctx context.Context, mobileNo, sessionToken string) (*model.LoginChallenge, error)
	MarkVerified(ctx context.Context, mobileNo, sessionToken string, verifiedAt time.Time, credentialID string) error
	InsertAttempt(ctx context.Context, attempt *model.VerificationAttempt) error
	AttemptCount(ctx context.Context, mobileNo, sessionToken string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// IssueParams carries everything a login challenge needs to record so that
// a later verification can register the user without re-asking the client.
type IssueParams struct {
	MobileNo string
	DeviceID string
	FCMToken string
	Email    string
	OTP      string
}

// Ledger records every issued login challenge and verification attempt.
type Ledger struct {
	store    Store
	lifetime time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewLedger(store Store, lifetime time.Duration, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:    store,
		lifetime: lifetime,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the ledger's time source. Intended for tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Issue stores a new challenge with a fresh opaque token and
// expires_at = now + the configured OTP lifetime. Prior challenges for the
// mobile number become unreachable: lookups always key on the current token.
func (l *Ledger) Issue(ctx context.Context, params IssueParams) (*model.LoginChallenge, error) {
	token, err := NewSessionToken()
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	challenge := &model.LoginChallenge{
		SessionToken: token,
		MobileNo:     params.MobileNo,
		DeviceID:     params.DeviceID,
		FCMToken:     params.FCMToken,
		Email:        params.Email,
		OTP:          params.OTP,
		IssuedAt:     now,
		ExpiresAt:    now.Add(l.lifetime),
	}

	if err := l.store.Insert(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store login challenge: %w", err)
	}

	l.logger.Info("Login challenge issued",
		util.String("mobile_no", params.MobileNo),
		util.String("device_id", params.DeviceID),
		util.Duration("lifetime", l.lifetime))

	return challenge, nil
}

// Find returns the challenge for the exact (mobile number, token) pair.
func (l *Ledger) Find(ctx context.Context, mobileNo, sessionToken string) (*model.LoginChallenge, error) {
	return l.store.Find(ctx, mobileNo, sessionToken)
}

// RecordAttempt appends one verification attempt.
func (l *Ledger) RecordAttempt(ctx context.Context, mobileNo, sessionToken, code string, success bool) error {
	attempt := &model.VerificationAttempt{
		MobileNo:     mobileNo,
		SessionToken: sessionToken,
		Code:         code,
		Success:      success,
		AttemptedAt:  l.now().UTC(),
	}
	if err := l.store.InsertAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record verification attempt: %w", err)
	}
	return nil
}

// AttemptCount returns the number of prior attempts for the pair.
func (l *Ledger) AttemptCount(ctx context.Context, mobileNo, sessionToken string) (int, error) {
	return l.store.AttemptCount(ctx, mobileNo, sessionToken)
}

// MarkVerified stamps the challenge with the verification time and the
// credential it produced.
func (l *Ledger) MarkVerified(ctx context.Context, mobileNo, sessionToken, credentialID string) error {
	return l.store.MarkVerified(ctx, mobileNo, sessionToken, l.now().UTC(), credentialID)
}

// SweepExpired deletes challenges past their expiry. It runs off the request
// path on a periodic timer.
func (l *Ledger) SweepExpired(ctx context.Context) (int, error) {
	count, err := l.store.DeleteExpired(ctx, l.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired challenges: %w", err)
	}
	if count > 0 {
		l.logger.Info("Swept expired login challenges", util.Int("count", count))
	}
	return count, nil
}

// NewSessionToken returns a 64-character opaque hex token.
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateOTP returns a zero-padded numeric one-time passcode.
func GenerateOTP(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	s := n.String()
	if pad := digits - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return s, nil
}
