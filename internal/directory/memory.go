package directory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"otp-auth-service/internal/model"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*model.User
	referral map[string]string // referral code -> mobile number
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*model.User),
		referral: make(map[string]string),
	}
}

func (s *MemoryStore) Insert(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.MobileNo]; exists {
		return ErrUserAlreadyExists
	}
	clone := *user
	s.users[user.MobileNo] = &clone
	return nil
}

func (s *MemoryStore) GetByMobile(_ context.Context, mobileNo string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[mobileNo]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *MemoryStore) Exists(_ context.Context, mobileNo string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[mobileNo]
	return ok, nil
}

func (s *MemoryStore) UpdateLoginStats(_ context.Context, mobileNo string, lastLogin time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[mobileNo]
	if !ok {
		return ErrUserNotFound
	}
	user.LoginCount++
	user.LastLoginAt = lastLogin
	user.IsActive = true
	user.UpdatedAt = lastLogin
	return nil
}

func (s *MemoryStore) UpdateFCMToken(_ context.Context, mobileNo, fcmToken string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[mobileNo]
	if !ok {
		return ErrUserNotFound
	}
	user.FCMToken = fcmToken
	user.UpdatedAt = updatedAt
	return nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, mobileNo string, upd model.ProfileUpdate, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[mobileNo]
	if !ok {
		return ErrUserNotFound
	}
	if upd.FullName != nil {
		user.FullName = *upd.FullName
	}
	if upd.State != nil {
		user.State = *upd.State
	}
	if upd.ReferralCode != nil {
		user.ReferralCode = *upd.ReferralCode
		s.referral[*upd.ReferralCode] = mobileNo
	}
	if upd.ReferredBy != nil {
		user.ReferredBy = *upd.ReferredBy
	}
	if upd.Extra != nil {
		if user.Preferences == nil {
			user.Preferences = make(map[string]interface{})
		}
		for k, v := range upd.Extra {
			user.Preferences[k] = v
		}
	}
	user.UpdatedAt = updatedAt
	return nil
}

func (s *MemoryStore) UpdateLocale(_ context.Context, mobileNo string, upd model.LocaleUpdate, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[mobileNo]
	if !ok {
		return ErrUserNotFound
	}
	if upd.LanguageCode != nil {
		user.LanguageCode = *upd.LanguageCode
	}
	if upd.LanguageName != nil {
		user.LanguageName = *upd.LanguageName
	}
	if upd.RegionCode != nil {
		user.RegionCode = *upd.RegionCode
	}
	if upd.Timezone != nil {
		user.Timezone = *upd.Timezone
	}
	if upd.Preferences != nil {
		if user.Preferences == nil {
			user.Preferences = make(map[string]interface{})
		}
		for k, v := range upd.Preferences {
			user.Preferences[k] = v
		}
	}
	user.UpdatedAt = updatedAt
	return nil
}

func (s *MemoryStore) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.referral[code]
	return ok, nil
}

// MemorySequence is an in-process SequenceAllocator for tests. Production
// uses the Redis-backed allocator, which survives restarts.
type MemorySequence struct {
	counter uint64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{}
}

func (s *MemorySequence) Next(_ context.Context) (uint64, error) {
	return atomic.AddUint64(&s.counter, 1), nil
}
