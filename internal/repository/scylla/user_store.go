package scylla

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/spaolacci/murmur3"

	"otp-auth-service/internal/directory"
	"otp-auth-service/internal/model"
)

// UserStore persists users in Scylla, partitioned by a murmur3 bucket of the
// mobile number so hot numbers spread across the cluster. Referral codes get
// their own lookup table keyed by code.
type UserStore struct {
	client  *ScyllaClient
	buckets uint32
}

func NewUserStore(client *ScyllaClient, buckets int) *UserStore {
	if buckets <= 0 {
		buckets = 64
	}
	return &UserStore{client: client, buckets: uint32(buckets)}
}

func (s *UserStore) bucket(mobileNo string) int {
	return int(murmur3.Sum32([]byte(mobileNo)) % s.buckets)
}

// Insert writes the user with IF NOT EXISTS so concurrent registrations of
// the same mobile number produce exactly one row.
func (s *UserStore) Insert(ctx context.Context, user *model.User) error {
	prefs, err := encodePreferences(user.Preferences)
	if err != nil {
		return err
	}

	applied, err := s.client.Prepared.InsertUser.WithContext(ctx).Bind(
		s.bucket(user.MobileNo), user.MobileNo, user.UserID, int64(user.UserNumber),
		user.DeviceID, user.FCMToken, user.Email, user.FullName, user.State,
		user.ReferralCode, user.ReferredBy, user.LanguageCode, user.LanguageName,
		user.RegionCode, user.Timezone, prefs, user.LoginCount, user.IsActive,
		user.CreatedAt, user.UpdatedAt, user.LastLoginAt,
	).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	if !applied {
		return directory.ErrUserAlreadyExists
	}
	return nil
}

func (s *UserStore) GetByMobile(ctx context.Context, mobileNo string) (*model.User, error) {
	var (
		user       model.User
		bucket     int
		userNumber int64
		prefs      string
	)
	err := s.client.Prepared.GetUserByMobile.WithContext(ctx).
		Bind(s.bucket(mobileNo), mobileNo).
		Scan(&bucket, &user.MobileNo, &user.UserID, &userNumber, &user.DeviceID,
			&user.FCMToken, &user.Email, &user.FullName, &user.State,
			&user.ReferralCode, &user.ReferredBy, &user.LanguageCode,
			&user.LanguageName, &user.RegionCode, &user.Timezone, &prefs,
			&user.LoginCount, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
			&user.LastLoginAt)
	if err == gocql.ErrNotFound {
		return nil, directory.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.UserNumber = uint64(userNumber)
	if prefs != "" {
		if err := json.Unmarshal([]byte(prefs), &user.Preferences); err != nil {
			return nil, fmt.Errorf("failed to decode preferences: %w", err)
		}
	}
	return &user, nil
}

func (s *UserStore) Exists(ctx context.Context, mobileNo string) (bool, error) {
	var found string
	err := s.client.Prepared.UserExists.WithContext(ctx).
		Bind(s.bucket(mobileNo), mobileNo).
		Scan(&found)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return true, nil
}

// UpdateLoginStats reads the current count and writes count+1. Two
// simultaneous logins for one number may collapse into a single increment;
// the counter is informational, not accounting.
func (s *UserStore) UpdateLoginStats(ctx context.Context, mobileNo string, lastLogin time.Time) error {
	user, err := s.GetByMobile(ctx, mobileNo)
	if err != nil {
		return err
	}
	err = s.client.Prepared.UpdateLoginStats.WithContext(ctx).
		Bind(user.LoginCount+1, lastLogin, lastLogin, s.bucket(mobileNo), mobileNo).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update login stats: %w", err)
	}
	return nil
}

func (s *UserStore) UpdateFCMToken(ctx context.Context, mobileNo, fcmToken string, updatedAt time.Time) error {
	if err := s.requireUser(ctx, mobileNo); err != nil {
		return err
	}
	err := s.client.Prepared.UpdateFCMToken.WithContext(ctx).
		Bind(fcmToken, updatedAt, s.bucket(mobileNo), mobileNo).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update fcm token: %w", err)
	}
	return nil
}

// UpdateProfile writes only the supplied fields via a dynamically built
// UPDATE. A new referral code is also registered in the lookup table.
func (s *UserStore) UpdateProfile(ctx context.Context, mobileNo string, upd model.ProfileUpdate, updatedAt time.Time) error {
	user, err := s.GetByMobile(ctx, mobileNo)
	if err != nil {
		return err
	}

	assignments := []string{"updated_at = ?"}
	values := []interface{}{updatedAt}
	if upd.FullName != nil {
		assignments = append(assignments, "full_name = ?")
		values = append(values, *upd.FullName)
	}
	if upd.State != nil {
		assignments = append(assignments, "state = ?")
		values = append(values, *upd.State)
	}
	if upd.ReferralCode != nil {
		assignments = append(assignments, "referral_code = ?")
		values = append(values, *upd.ReferralCode)
	}
	if upd.ReferredBy != nil {
		assignments = append(assignments, "referred_by = ?")
		values = append(values, *upd.ReferredBy)
	}
	if len(upd.Extra) > 0 {
		// Preferences live in a single JSON column, so a partial update
		// must merge over the stored map or keys from earlier updates
		// would be lost.
		prefs, err := encodePreferences(mergePreferences(user.Preferences, upd.Extra))
		if err != nil {
			return err
		}
		assignments = append(assignments, "preferences = ?")
		values = append(values, prefs)
	}
	values = append(values, s.bucket(mobileNo), mobileNo)

	stmt := fmt.Sprintf("UPDATE users SET %s WHERE user_bucket = ? AND mobile_no = ?",
		strings.Join(assignments, ", "))
	if err := s.client.Query(stmt, values...).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if upd.ReferralCode != nil && *upd.ReferralCode != "" {
		err := s.client.Prepared.InsertReferralCode.WithContext(ctx).
			Bind(*upd.ReferralCode, mobileNo, updatedAt).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to register referral code: %w", err)
		}
	}
	return nil
}

func (s *UserStore) UpdateLocale(ctx context.Context, mobileNo string, upd model.LocaleUpdate, updatedAt time.Time) error {
	user, err := s.GetByMobile(ctx, mobileNo)
	if err != nil {
		return err
	}

	assignments := []string{"updated_at = ?"}
	values := []interface{}{updatedAt}
	if upd.LanguageCode != nil {
		assignments = append(assignments, "language_code = ?")
		values = append(values, *upd.LanguageCode)
	}
	if upd.LanguageName != nil {
		assignments = append(assignments, "language_name = ?")
		values = append(values, *upd.LanguageName)
	}
	if upd.RegionCode != nil {
		assignments = append(assignments, "region_code = ?")
		values = append(values, *upd.RegionCode)
	}
	if upd.Timezone != nil {
		assignments = append(assignments, "timezone = ?")
		values = append(values, *upd.Timezone)
	}
	if len(upd.Preferences) > 0 {
		prefs, err := encodePreferences(mergePreferences(user.Preferences, upd.Preferences))
		if err != nil {
			return err
		}
		assignments = append(assignments, "preferences = ?")
		values = append(values, prefs)
	}
	values = append(values, s.bucket(mobileNo), mobileNo)

	stmt := fmt.Sprintf("UPDATE users SET %s WHERE user_bucket = ? AND mobile_no = ?",
		strings.Join(assignments, ", "))
	if err := s.client.Query(stmt, values...).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to update locale: %w", err)
	}
	return nil
}

func (s *UserStore) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var owner string
	err := s.client.Prepared.GetReferralCode.WithContext(ctx).Bind(code).Scan(&owner)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check referral code: %w", err)
	}
	return true, nil
}

// requireUser surfaces ErrUserNotFound before a blind Scylla UPDATE, which
// would otherwise silently upsert a partial row.
func (s *UserStore) requireUser(ctx context.Context, mobileNo string) error {
	exists, err := s.Exists(ctx, mobileNo)
	if err != nil {
		return err
	}
	if !exists {
		return directory.ErrUserNotFound
	}
	return nil
}

// mergePreferences overlays updates onto the stored map without mutating
// either argument. Supplied keys win over existing ones.
func mergePreferences(existing, updates map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}

func encodePreferences(prefs map[string]interface{}) (string, error) {
	if len(prefs) == 0 {
		return "", nil
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return "", fmt.Errorf("failed to encode preferences: %w", err)
	}
	return string(data), nil
}
