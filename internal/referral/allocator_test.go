package referral

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newTestAllocator() *Allocator {
	return NewAllocator(NewMemoryRegistry(), 6, 10, zap.NewNop())
}

func TestAllocateGeneratesCodeOfConfiguredLength(t *testing.T) {
	a := newTestAllocator()

	code, err := a.Allocate(context.Background(), "")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("expected 6-character code, got %q", code)
	}
	for _, c := range code {
		if !strings.ContainsRune(codeCharset, c) {
			t.Errorf("code %q contains character outside charset", code)
		}
	}
}

func TestAllocateNeverRepeats(t *testing.T) {
	a := newTestAllocator()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := a.Allocate(ctx, "")
		if err != nil {
			t.Fatalf("Allocate failed on iteration %d: %v", i, err)
		}
		if seen[code] {
			t.Fatalf("code %q allocated twice", code)
		}
		seen[code] = true
	}
}

func TestConcurrentAllocationsAreDistinct(t *testing.T) {
	a := newTestAllocator()
	ctx := context.Background()

	const n = 50
	codes := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := a.Allocate(ctx, "")
			if err != nil {
				t.Errorf("Allocate failed: %v", err)
				return
			}
			codes <- code
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		if seen[code] {
			t.Fatalf("code %q allocated to two callers", code)
		}
		seen[code] = true
	}
}

func TestAllocateClaimsValidCandidate(t *testing.T) {
	a := newTestAllocator()

	code, err := a.Allocate(context.Background(), "MYCODE1")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if code != "MYCODE1" {
		t.Errorf("expected candidate to be claimed as-is, got %q", code)
	}
}

func TestAllocateRejectsTakenCandidate(t *testing.T) {
	a := newTestAllocator()
	ctx := context.Background()

	if _, err := a.Allocate(ctx, "MYCODE1"); err != nil {
		t.Fatalf("first Allocate failed: %v", err)
	}
	_, err := a.Allocate(ctx, "MYCODE1")
	if !errors.Is(err, ErrCodeTaken) {
		t.Errorf("expected ErrCodeTaken, got %v", err)
	}
}

func TestAllocateRejectsMalformedCandidate(t *testing.T) {
	a := newTestAllocator()
	ctx := context.Background()

	for _, candidate := range []string{"ab", "with space", "toolongtoolongtoolong123", "bad-char!"} {
		_, err := a.Allocate(ctx, candidate)
		if !errors.Is(err, ErrInvalidCode) {
			t.Errorf("candidate %q: expected ErrInvalidCode, got %v", candidate, err)
		}
	}
}

// saturatedRegistry reports every code as taken.
type saturatedRegistry struct{}

func (saturatedRegistry) Exists(context.Context, string) (bool, error)  { return true, nil }
func (saturatedRegistry) Reserve(context.Context, string) (bool, error) { return false, nil }

func TestAllocateGivesUpAfterBoundedAttempts(t *testing.T) {
	a := NewAllocator(saturatedRegistry{}, 6, 10, zap.NewNop())

	_, err := a.Allocate(context.Background(), "")
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
}
