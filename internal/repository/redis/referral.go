package redis

import (
	"context"
	"fmt"
	"time"

	"otp-auth-service/internal/client"
	"otp-auth-service/internal/directory"
)

const (
	reservePrefix = "referral:reserve:"
	reserveTTL    = time.Hour
)

// ReferralRegistry backs referral code allocation. Permanent ownership
// lives in the user directory; Redis holds short-lived reservations so two
// concurrent allocations cannot both claim a code before either persists it.
type ReferralRegistry struct {
	client *client.RedisClient
	users  directory.Store
}

func NewReferralRegistry(c *client.RedisClient, users directory.Store) *ReferralRegistry {
	return &ReferralRegistry{client: c, users: users}
}

func (r *ReferralRegistry) Exists(ctx context.Context, code string) (bool, error) {
	taken, err := r.users.ReferralCodeExists(ctx, code)
	if err != nil {
		return false, err
	}
	if taken {
		return true, nil
	}
	reserved, err := r.client.Exists(ctx, reservePrefix+code)
	if err != nil {
		return false, fmt.Errorf("failed to check referral reservation: %w", err)
	}
	return reserved, nil
}

// Reserve claims the code with SETNX. The reservation expires on its own if
// the profile update that follows never lands.
func (r *ReferralRegistry) Reserve(ctx context.Context, code string) (bool, error) {
	ok, err := r.client.SetNX(ctx, reservePrefix+code, 1, reserveTTL)
	if err != nil {
		return false, fmt.Errorf("failed to reserve referral code: %w", err)
	}
	return ok, nil
}
