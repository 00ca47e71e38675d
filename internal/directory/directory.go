package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"otp-auth-service/internal/model"
	"otp-auth-service/internal/util"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrReferralNotFound  = errors.New("referred-by code does not exist")
)

// Store is the durable user registry. Implementations must enforce the
// one-user-per-mobile-number invariant on Insert.
type Store interface {
	Insert(ctx context.Context, user *model.User) error
	GetByMobile(ctx context.Context, mobileNo string) (*model.User, error)
	Exists(ctx context.Context, mobileNo string) (bool, error)
	UpdateLoginStats(ctx context.Context, mobileNo string, lastLogin time.Time) error
	UpdateFCMToken(ctx context.Context, mobileNo, fcmToken string, updatedAt time.Time) error
	UpdateProfile(ctx context.Context, mobileNo string, upd model.ProfileUpdate, updatedAt time.Time) error
	UpdateLocale(ctx context.Context, mobileNo string, upd model.LocaleUpdate, updatedAt time.Time) error
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
}

// SequenceAllocator hands out user numbers. Next must be atomic and
// monotonic: two concurrent registrations never receive the same number,
// and numbers survive process restarts.
type SequenceAllocator interface {
	Next(ctx context.Context) (uint64, error)
}

// Directory is the canonical registry of users keyed by mobile number.
type Directory struct {
	store  Store
	seq    SequenceAllocator
	logger *zap.Logger
	now    func() time.Time
}

func New(store Store, seq SequenceAllocator, logger *zap.Logger) *Directory {
	return &Directory{
		store:  store,
		seq:    seq,
		logger: logger,
		now:    time.Now,
	}
}

// Exists reports whether a user is registered for the mobile number.
func (d *Directory) Exists(ctx context.Context, mobileNo string) (bool, error) {
	return d.store.Exists(ctx, mobileNo)
}

// GetByMobile returns the user for the mobile number.
func (d *Directory) GetByMobile(ctx context.Context, mobileNo string) (*model.User, error) {
	return d.store.GetByMobile(ctx, mobileNo)
}

// Register creates a new user with a fresh UUIDv7 identity and the next
// sequence number. Identity and sequence number never change afterwards.
func (d *Directory) Register(ctx context.Context, mobileNo, deviceID, fcmToken, email string) (*model.User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	userNumber, err := d.seq.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate user number: %w", err)
	}

	now := d.now().UTC()
	user := &model.User{
		MobileNo:    mobileNo,
		UserID:      id.String(),
		UserNumber:  userNumber,
		DeviceID:    deviceID,
		FCMToken:    fcmToken,
		Email:       email,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: now,
	}

	if err := d.store.Insert(ctx, user); err != nil {
		return nil, err
	}

	d.logger.Info("User registered",
		util.String("mobile_no", mobileNo),
		util.String("user_id", user.UserID),
		util.Uint64("user_number", userNumber))

	return user, nil
}

// UpdateLoginStats increments the login counter, sets the last-login
// timestamp and marks the user active. Callers must register first; an
// unknown mobile number surfaces ErrUserNotFound.
func (d *Directory) UpdateLoginStats(ctx context.Context, mobileNo string) error {
	return d.store.UpdateLoginStats(ctx, mobileNo, d.now().UTC())
}

// UpdateFCMToken replaces the stored push-notification token.
func (d *Directory) UpdateFCMToken(ctx context.Context, mobileNo, fcmToken string) error {
	return d.store.UpdateFCMToken(ctx, mobileNo, fcmToken, d.now().UTC())
}

// UpdateProfile writes only the supplied fields; absent fields are left
// untouched. A ReferredBy value must reference an existing referral code.
func (d *Directory) UpdateProfile(ctx context.Context, mobileNo string, upd model.ProfileUpdate) error {
	if upd.ReferredBy != nil && *upd.ReferredBy != "" {
		exists, err := d.store.ReferralCodeExists(ctx, *upd.ReferredBy)
		if err != nil {
			return fmt.Errorf("failed to check referred-by code: %w", err)
		}
		if !exists {
			return ErrReferralNotFound
		}
	}
	return d.store.UpdateProfile(ctx, mobileNo, upd, d.now().UTC())
}

// UpdateLocale writes only the supplied locale fields.
func (d *Directory) UpdateLocale(ctx context.Context, mobileNo string, upd model.LocaleUpdate) error {
	return d.store.UpdateLocale(ctx, mobileNo, upd, d.now().UTC())
}

// ReferralCodeExists reports whether any user already owns the code.
func (d *Directory) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	return d.store.ReferralCodeExists(ctx, code)
}
