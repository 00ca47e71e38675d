package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"otp-auth-service/internal/util"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	ErrCodeTaken   = errors.New("referral code already taken")
	ErrInvalidCode = errors.New("referral code must be 4-20 alphanumeric characters")
	ErrExhausted   = errors.New("referral code generation attempts exhausted")
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{4,20}$`)

// Registry answers whether a code is in use and atomically reserves
// generated codes so two concurrent allocations never return the same one.
type Registry interface {
	Exists(ctx context.Context, code string) (bool, error)
	Reserve(ctx context.Context, code string) (bool, error)
}

// Allocator hands out collision-free referral codes.
type Allocator struct {
	registry    Registry
	codeLength  int
	maxAttempts int
	logger      *zap.Logger
}

func NewAllocator(registry Registry, codeLength, maxAttempts int, logger *zap.Logger) *Allocator {
	return &Allocator{
		registry:    registry,
		codeLength:  codeLength,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Allocate returns a unique referral code. A non-empty candidate is
// validated and claimed as-is; with no candidate a fixed-length code is
// generated, retrying a bounded number of times before ErrExhausted.
func (a *Allocator) Allocate(ctx context.Context, candidate string) (string, error) {
	if candidate != "" {
		if !codePattern.MatchString(candidate) {
			return "", ErrInvalidCode
		}
		return a.claim(ctx, candidate)
	}

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		code, err := a.generate()
		if err != nil {
			return "", err
		}
		allocated, err := a.claim(ctx, code)
		if err == nil {
			return allocated, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return "", err
		}
	}

	a.logger.Error("Referral code generation exhausted",
		util.Int("max_attempts", a.maxAttempts))
	return "", ErrExhausted
}

func (a *Allocator) claim(ctx context.Context, code string) (string, error) {
	exists, err := a.registry.Exists(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to check referral code: %w", err)
	}
	if exists {
		return "", ErrCodeTaken
	}
	reserved, err := a.registry.Reserve(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to reserve referral code: %w", err)
	}
	if !reserved {
		return "", ErrCodeTaken
	}
	return code, nil
}

func (a *Allocator) generate() (string, error) {
	out := make([]byte, a.codeLength)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code: %w", err)
		}
		out[i] = codeCharset[n.Int64()]
	}
	return string(out), nil
}

// MemoryRegistry is an in-memory Registry for tests.
type MemoryRegistry struct {
	mu    sync.Mutex
	codes map[string]bool
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{codes: make(map[string]bool)}
}

func (r *MemoryRegistry) Exists(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[code], nil
}

func (r *MemoryRegistry) Reserve(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codes[code] {
		return false, nil
	}
	r.codes[code] = true
	return true, nil
}
