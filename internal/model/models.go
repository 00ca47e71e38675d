package model

import "time"

// User is the canonical record for a registered mobile number. MobileNo is
// the natural key; UserID and UserNumber are assigned once at registration
// and never change.
type User struct {
	MobileNo     string                 `json:"mobile_no"`
	UserID       string                 `json:"user_id"`
	UserNumber   uint64                 `json:"user_number"`
	DeviceID     string                 `json:"device_id"`
	FCMToken     string                 `json:"fcm_token"`
	Email        string                 `json:"email,omitempty"`
	FullName     string                 `json:"full_name,omitempty"`
	State        string                 `json:"state,omitempty"`
	ReferralCode string                 `json:"referral_code,omitempty"`
	ReferredBy   string                 `json:"referred_by,omitempty"`
	LanguageCode string                 `json:"language_code,omitempty"`
	LanguageName string                 `json:"language_name,omitempty"`
	RegionCode   string                 `json:"region_code,omitempty"`
	Timezone     string                 `json:"timezone,omitempty"`
	Preferences  map[string]interface{} `json:"preferences,omitempty"`
	LoginCount   int                    `json:"login_count"`
	IsActive     bool                   `json:"is_active"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	LastLoginAt  time.Time              `json:"last_login_at,omitempty"`
}

// LoginChallenge records one issued OTP challenge. A challenge is usable for
// verification only before ExpiresAt; VerifiedAt and CredentialID are filled
// when a verification succeeds.
type LoginChallenge struct {
	SessionToken string     `json:"session_token"`
	MobileNo     string     `json:"mobile_no"`
	DeviceID     string     `json:"device_id"`
	FCMToken     string     `json:"fcm_token"`
	Email        string     `json:"email,omitempty"`
	OTP          string     `json:"otp"`
	IssuedAt     time.Time  `json:"issued_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CredentialID string     `json:"credential_id,omitempty"`
}

// Expired reports whether the challenge is past its validity window at now.
func (c *LoginChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// VerificationAttempt is one append-only record of a submitted code for a
// (mobile number, session token) pair.
type VerificationAttempt struct {
	MobileNo     string    `json:"mobile_no"`
	SessionToken string    `json:"session_token"`
	Code         string    `json:"code"`
	Success      bool      `json:"success"`
	AttemptedAt  time.Time `json:"attempted_at"`
}

// ProfileUpdate is a partial update: only non-nil fields are written.
type ProfileUpdate struct {
	FullName     *string
	State        *string
	ReferralCode *string
	ReferredBy   *string
	Extra        map[string]interface{}
}

// LocaleUpdate is a partial update: only non-nil fields are written.
type LocaleUpdate struct {
	LanguageCode *string
	LanguageName *string
	RegionCode   *string
	Timezone     *string
	Preferences  map[string]interface{}
}
