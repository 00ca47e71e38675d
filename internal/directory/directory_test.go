package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"go.uber.org/zap"

	"otp-auth-service/internal/model"
)

func newTestDirectory() *Directory {
	return New(NewMemoryStore(), NewMemorySequence(), zap.NewNop())
}

func TestRegisterAssignsIdentityAndSequence(t *testing.T) {
	d := newTestDirectory()
	ctx := context.Background()

	user, err := d.Register(ctx, "9876543210", "dev-1", "fcm-1", "a@example.com")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.UserID == "" {
		t.Error("expected a user id")
	}
	if user.UserNumber != 1 {
		t.Errorf("expected user number 1, got %d", user.UserNumber)
	}
	if !user.IsActive {
		t.Error("expected new user to be active")
	}

	got, err := d.GetByMobile(ctx, "9876543210")
	if err != nil {
		t.Fatalf("GetByMobile failed: %v", err)
	}
	if got.UserID != user.UserID {
		t.Errorf("expected user id %s, got %s", user.UserID, got.UserID)
	}
}

func TestRegisterRejectsDuplicateMobile(t *testing.T) {
	d := newTestDirectory()
	ctx := context.Background()

	if _, err := d.Register(ctx, "9876543210", "dev-1", "fcm-1", ""); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := d.Register(ctx, "9876543210", "dev-2", "fcm-2", "")
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestConcurrentRegistrationsGetDistinctSequenceNumbers(t *testing.T) {
	d := newTestDirectory()
	ctx := context.Background()

	const n = 50
	numbers := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := d.Register(ctx, fmt.Sprintf("98765000%02d", i), "dev", "fcm", "")
			if err != nil {
				t.Errorf("Register failed: %v", err)
				return
			}
			numbers <- user.UserNumber
		}(i)
	}
	wg.Wait()
	close(numbers)

	var got []uint64
	for n := range numbers {
		got = append(got, n)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, n := range got {
		if n != uint64(i+1) {
			t.Fatalf("expected contiguous sequence 1..%d, got %v", len(got), got)
		}
	}
}

func TestUpdateProfileIsPartial(t *testing.T) {
	d := newTestDirectory()
	ctx := context.Background()

	if _, err := d.Register(ctx, "9876543210", "dev-1", "fcm-1", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	name := "Asha Rao"
	state := "Karnataka"
	code := "ABC123"
	err := d.UpdateProfile(ctx, "9876543210", model.ProfileUpdate{
		FullName:     &name,
		State:        &state,
		ReferralCode: &code,
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	newState := "Kerala"
	if err := d.UpdateProfile(ctx, "9876543210", model.ProfileUpdate{State: &newState}); err != nil {
		t.Fatalf("second UpdateProfile failed: %v", err)
	}

	user, err := d.GetByMobile(ctx, "9876543210")
	if err != nil {
		t.Fatalf("GetByMobile failed: %v", err)
	}
	if user.FullName != "Asha Rao" {
		t.Errorf("full name clobbered by partial update: %q", user.FullName)
	}
	if user.State != "Kerala" {
		t.Errorf("expected state Kerala, got %q", user.State)
	}
	if user.ReferralCode != "ABC123" {
		t.Errorf("referral code clobbered by partial update: %q", user.ReferralCode)
	}
}

func TestPreferencesAccumulateAcrossUpdates(t *testing.T) {
	d := newTestDirectory()
	ctx := context.Background()

	if _, err := d.Register(ctx, "9876543210", "dev-1", "fcm-1", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := d.UpdateLocale(ctx, "9876543210", model.LocaleUpdate{
		Preferences: map[string]interface{}{"theme": "dark"},
	})
	if err != nil {
		t.Fatalf("UpdateLocale failed: %v", err)
	}
	err = d.UpdateProfile(ctx, "9876543210", model.ProfileUpdate{
		Extra: map[string]interface{}{"newsletter": "yes"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	user, err := d.GetByMobile(ctx, "9876543210")
	if err != nil {
		t.Fatalf("GetByMobile failed: %v", err)
	}
	if user.Preferences["theme"] != "dark" {
		t.Errorf("locale preference lost after profile update: %v", user.Preferences)
	}
	if user.Preferences["newsletter"] != "yes" {
		t.Errorf("profile extra missing: %v", user.Preferences)
	}
}

func TestUpdateProfileRejectsUnknownReferrer(t *testing.T) {
	d := newTestDirectory()
	ctx := context.Background()

	if _, err := d.Register(ctx, "9876543210", "dev-1", "fcm-1", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	referredBy := "NOSUCH"
	err := d.UpdateProfile(ctx, "9876543210", model.ProfileUpdate{ReferredBy: &referredBy})
	if !errors.Is(err, ErrReferralNotFound) {
		t.Errorf("expected ErrReferralNotFound, got %v", err)
	}
}

func TestUpdateProfileAcceptsKnownReferrer(t *testing.T) {
	d := newTestDirectory()
	ctx := context.Background()

	if _, err := d.Register(ctx, "9876543210", "dev-1", "fcm-1", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := d.Register(ctx, "9876543211", "dev-2", "fcm-2", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	code := "FRIEND1"
	if err := d.UpdateProfile(ctx, "9876543211", model.ProfileUpdate{ReferralCode: &code}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	referredBy := "FRIEND1"
	if err := d.UpdateProfile(ctx, "9876543210", model.ProfileUpdate{ReferredBy: &referredBy}); err != nil {
		t.Fatalf("expected referred-by to be accepted, got %v", err)
	}
}

func TestUpdateLoginStatsIncrementsCounter(t *testing.T) {
	d := newTestDirectory()
	ctx := context.Background()

	if _, err := d.Register(ctx, "9876543210", "dev-1", "fcm-1", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := d.UpdateLoginStats(ctx, "9876543210"); err != nil {
		t.Fatalf("UpdateLoginStats failed: %v", err)
	}
	if err := d.UpdateLoginStats(ctx, "9876543210"); err != nil {
		t.Fatalf("UpdateLoginStats failed: %v", err)
	}

	user, _ := d.GetByMobile(ctx, "9876543210")
	if user.LoginCount != 2 {
		t.Errorf("expected login count 2, got %d", user.LoginCount)
	}
}

func TestUpdateStatsForUnknownUserFails(t *testing.T) {
	d := newTestDirectory()
	err := d.UpdateLoginStats(context.Background(), "0000000000")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
