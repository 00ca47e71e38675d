package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"otp-auth-service/internal/model"
	"otp-auth-service/internal/session"
)

// SessionStore persists login challenges and verification attempts.
// Challenge rows carry a TTL backstop so rows the sweeper misses still age
// out; attempts use the same TTL since they are meaningless without their
// challenge.
type SessionStore struct {
	client *ScyllaClient
}

func NewSessionStore(client *ScyllaClient) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Insert(ctx context.Context, challenge *model.LoginChallenge) error {
	var verifiedAt interface{}
	if challenge.VerifiedAt != nil {
		verifiedAt = *challenge.VerifiedAt
	}
	err := s.client.Prepared.InsertChallenge.WithContext(ctx).Bind(
		challenge.MobileNo, challenge.SessionToken, challenge.DeviceID,
		challenge.FCMToken, challenge.Email, challenge.OTP,
		challenge.IssuedAt, challenge.ExpiresAt, verifiedAt,
		challenge.CredentialID, s.client.ChallengeTTL(),
	).Exec()
	if err != nil {
		return fmt.Errorf("failed to insert login challenge: %w", err)
	}
	return nil
}

func (s *SessionStore) Find(ctx context.Context, mobileNo, sessionToken string) (*model.LoginChallenge, error) {
	var (
		challenge  model.LoginChallenge
		verifiedAt time.Time
	)
	err := s.client.Prepared.GetChallenge.WithContext(ctx).
		Bind(mobileNo, sessionToken).
		Scan(&challenge.MobileNo, &challenge.SessionToken, &challenge.DeviceID,
			&challenge.FCMToken, &challenge.Email, &challenge.OTP,
			&challenge.IssuedAt, &challenge.ExpiresAt, &verifiedAt,
			&challenge.CredentialID)
	if err == gocql.ErrNotFound {
		return nil, session.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get login challenge: %w", err)
	}
	if !verifiedAt.IsZero() {
		challenge.VerifiedAt = &verifiedAt
	}
	return &challenge, nil
}

func (s *SessionStore) MarkVerified(ctx context.Context, mobileNo, sessionToken string, verifiedAt time.Time, credentialID string) error {
	err := s.client.Prepared.MarkChallengeVerified.WithContext(ctx).
		Bind(verifiedAt, credentialID, mobileNo, sessionToken).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to mark challenge verified: %w", err)
	}
	return nil
}

func (s *SessionStore) InsertAttempt(ctx context.Context, attempt *model.VerificationAttempt) error {
	err := s.client.Prepared.InsertAttempt.WithContext(ctx).Bind(
		attempt.MobileNo, attempt.SessionToken, gocql.TimeUUID(),
		attempt.Code, attempt.Success, attempt.AttemptedAt,
		s.client.ChallengeTTL(),
	).Exec()
	if err != nil {
		return fmt.Errorf("failed to insert verification attempt: %w", err)
	}
	return nil
}

func (s *SessionStore) AttemptCount(ctx context.Context, mobileNo, sessionToken string) (int, error) {
	var count int
	err := s.client.Prepared.CountAttempts.WithContext(ctx).
		Bind(mobileNo, sessionToken).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count verification attempts: %w", err)
	}
	return count, nil
}

// DeleteExpired pages through all challenges and deletes the expired ones.
// The full scan is acceptable because the TTL backstop keeps the table
// bounded to recent challenges.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	iter := s.client.Prepared.ScanChallenges.WithContext(ctx).Iter()

	var (
		mobileNo     string
		sessionToken string
		expiresAt    time.Time
		deleted      int
	)
	for iter.Scan(&mobileNo, &sessionToken, &expiresAt) {
		if !now.After(expiresAt) {
			continue
		}
		err := s.client.Prepared.DeleteChallenge.WithContext(ctx).
			Bind(mobileNo, sessionToken).
			Exec()
		if err != nil {
			iter.Close()
			return deleted, fmt.Errorf("failed to delete expired challenge: %w", err)
		}
		deleted++
	}
	if err := iter.Close(); err != nil {
		return deleted, fmt.Errorf("failed to scan login challenges: %w", err)
	}
	return deleted, nil
}
