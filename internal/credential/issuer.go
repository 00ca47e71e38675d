package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrDeviceMismatch = errors.New("device id mismatch")
	ErrMobileMismatch = errors.New("mobile number mismatch")
)

// Claims are the identity assertions embedded in a bearer credential.
// Subject carries the user's UUIDv7 identity; ID (jti) is unique per token.
type Claims struct {
	UserNumber uint64 `json:"user_number"`
	MobileNo   string `json:"mobile_no"`
	DeviceID   string `json:"device_id"`
	FCMToken   string `json:"fcm_token"`
	jwt.RegisteredClaims
}

// TokenPayload is the wire-friendly view of a verified credential.
type TokenPayload struct {
	UserID     string `json:"user_id"`
	UserNumber uint64 `json:"user_number"`
	MobileNo   string `json:"mobile_no"`
	DeviceID   string `json:"device_id"`
	FCMToken   string `json:"fcm_token"`
	TokenType  string `json:"token_type"`
	ExpiresIn  int64  `json:"expires_in"`
}

// Issuer mints and verifies signed, time-bounded bearer credentials.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewIssuer(secret []byte, lifetime time.Duration) *Issuer {
	return &Issuer{
		secret:   secret,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// SetClock overrides the issuer's time source. Intended for tests.
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

// Lifetime returns the configured credential validity window.
func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime
}

// Mint produces a signed HS256 token embedding the identity claims.
func (i *Issuer) Mint(userID string, userNumber uint64, mobileNo, deviceID, fcmToken string) (string, *Claims, error) {
	jti, err := uuid.NewV7()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token id: %w", err)
	}

	now := i.now().UTC()
	claims := &Claims{
		UserNumber: userNumber,
		MobileNo:   mobileNo,
		DeviceID:   deviceID,
		FCMToken:   fcmToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
			ID:        jti.String(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, claims, nil
}

// Verify checks the signature and expiry. Malformed, unsigned or expired
// tokens are rejected outright, never partially trusted.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyWithDeviceBinding additionally rejects claims whose device id or
// mobile number differ from the expected values, so a leaked token cannot be
// replayed from a different device context.
func (i *Issuer) VerifyWithDeviceBinding(token, deviceID, mobileNo string) (*Claims, error) {
	claims, err := i.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.DeviceID != deviceID {
		return nil, ErrDeviceMismatch
	}
	if claims.MobileNo != mobileNo {
		return nil, ErrMobileMismatch
	}
	return claims, nil
}

// Refresh re-mints the same identity claims with a fresh window and jti.
func (i *Issuer) Refresh(token string) (string, *Claims, error) {
	claims, err := i.Verify(token)
	if err != nil {
		return "", nil, err
	}
	return i.Mint(claims.Subject, claims.UserNumber, claims.MobileNo, claims.DeviceID, claims.FCMToken)
}

// Payload verifies a token and returns its wire-friendly view.
func (i *Issuer) Payload(token string) (*TokenPayload, error) {
	claims, err := i.Verify(token)
	if err != nil {
		return nil, err
	}
	return &TokenPayload{
		UserID:     claims.Subject,
		UserNumber: claims.UserNumber,
		MobileNo:   claims.MobileNo,
		DeviceID:   claims.DeviceID,
		FCMToken:   claims.FCMToken,
		TokenType:  "Bearer",
		ExpiresIn:  int64(claims.ExpiresAt.Time.Sub(i.now()).Seconds()),
	}, nil
}
