package redis

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"otp-auth-service/internal/client"
	"otp-auth-service/internal/config"
)

func newTestRedis(t *testing.T) *client.RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Redis: config.RedisConfig{
			URL:      "redis://" + mr.Addr(),
			PoolSize: 10,
		},
	}
	rc, err := client.NewRedisClient(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { rc.Close() })
	return rc
}

func TestSequenceIsMonotonic(t *testing.T) {
	seq := NewSequence(newTestRedis(t))
	ctx := context.Background()

	var prev uint64
	for i := 0; i < 10; i++ {
		n, err := seq.Next(ctx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if n <= prev {
			t.Fatalf("sequence went backwards: %d after %d", n, prev)
		}
		prev = n
	}
	if prev != 10 {
		t.Errorf("expected sequence to reach 10, got %d", prev)
	}
}

func TestSequenceConcurrentCallersGetDistinctNumbers(t *testing.T) {
	seq := NewSequence(newTestRedis(t))
	ctx := context.Background()

	const n = 50
	numbers := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(ctx)
			if err != nil {
				t.Errorf("Next failed: %v", err)
				return
			}
			numbers <- v
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[uint64]bool)
	for v := range numbers {
		if seen[v] {
			t.Fatalf("number %d allocated twice", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct numbers, got %d", n, len(seen))
	}
}
