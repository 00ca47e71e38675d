package session

import (
	"context"
	"sync"
	"time"

	"otp-auth-service/internal/model"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	challenges map[string]*model.LoginChallenge
	attempts   map[string][]*model.VerificationAttempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]*model.LoginChallenge),
		attempts:   make(map[string][]*model.VerificationAttempt),
	}
}

func key(mobileNo, sessionToken string) string {
	return mobileNo + "|" + sessionToken
}

func (s *MemoryStore) Insert(_ context.Context, challenge *model.LoginChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *challenge
	s.challenges[key(challenge.MobileNo, challenge.SessionToken)] = &clone
	return nil
}

func (s *MemoryStore) Find(_ context.Context, mobileNo, sessionToken string) (*model.LoginChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.challenges[key(mobileNo, sessionToken)]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	clone := *challenge
	return &clone, nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, mobileNo, sessionToken string, verifiedAt time.Time, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.challenges[key(mobileNo, sessionToken)]
	if !ok {
		return ErrChallengeNotFound
	}
	challenge.VerifiedAt = &verifiedAt
	challenge.CredentialID = credentialID
	return nil
}

func (s *MemoryStore) InsertAttempt(_ context.Context, attempt *model.VerificationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(attempt.MobileNo, attempt.SessionToken)
	clone := *attempt
	s.attempts[k] = append(s.attempts[k], &clone)
	return nil
}

func (s *MemoryStore) AttemptCount(_ context.Context, mobileNo, sessionToken string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts[key(mobileNo, sessionToken)]), nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for k, challenge := range s.challenges {
		if challenge.Expired(now) {
			delete(s.challenges, k)
			delete(s.attempts, k)
			count++
		}
	}
	return count, nil
}
