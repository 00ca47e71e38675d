package redis

import (
	"context"
	"fmt"

	"otp-auth-service/internal/client"
)

const sequenceKey = "user:sequence"

// Sequence allocates user numbers with a Redis INCR. INCR is atomic on the
// server and the counter is durable, so restarts and concurrent
// registrations can never hand out a duplicate.
type Sequence struct {
	client *client.RedisClient
}

func NewSequence(c *client.RedisClient) *Sequence {
	return &Sequence{client: c}
}

func (s *Sequence) Next(ctx context.Context) (uint64, error) {
	n, err := s.client.Incr(ctx, sequenceKey)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate user number: %w", err)
	}
	return uint64(n), nil
}
