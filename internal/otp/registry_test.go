// ABOUTME: Tests for the provider registry aggregation semantics
// ABOUTME: Uses a configurable in-test provider, no real crypto

package otp

import (
	"context"
	"testing"

	"github.com/drawbridgehq/drawbridge/internal/config"
)

// fakeProvider is a scriptable Provider for registry tests.
type fakeProvider struct {
	id        string
	enabled   bool
	enrolled  map[int64]bool
	validCode string
}

func (f *fakeProvider) ID() string                      { return f.id }
func (f *fakeProvider) Enabled(_ config.OTPConfig) bool { return f.enabled }

func (f *fakeProvider) EnabledForUser(_ context.Context, userID int64) (bool, error) {
	return f.enrolled[userID], nil
}
func (f *fakeProvider) Verify(_ context.Context, userID int64, code string) (bool, error) {
	return f.enrolled[userID] && code == f.validCode, nil
}
func (f *fakeProvider) Enable(_ context.Context, userID int64, _ EnrollmentRequest) error {
	f.enrolled[userID] = true
	return nil
}
func (f *fakeProvider) Disable(_ context.Context, userID int64) error {
	delete(f.enrolled, userID)
	return nil
}
func (f *fakeProvider) Data(_ context.Context, _ int64) (*EnrollmentData, error) {
	return &EnrollmentData{Secret: "fake"}, nil
}

func newFakeProvider(id string, enabled bool) *fakeProvider {
	return &fakeProvider{id: id, enabled: enabled, enrolled: map[int64]bool{}, validCode: "valid-" + id}
}

func TestRegistryGetRespectsDeploymentConfig(t *testing.T) {
	r := NewRegistry(config.OTPConfig{}, nil)
	r.Register(newFakeProvider("on", true))
	r.Register(newFakeProvider("off", false))

	if _, ok := r.Get("on"); !ok {
		t.Error("enabled provider must be reachable")
	}
	if _, ok := r.Get("off"); ok {
		t.Error("deployment-disabled provider must be hidden")
	}
	if _, ok := r.Get("never-registered"); ok {
		t.Error("unknown provider must be hidden")
	}
}

func TestRegistryListKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry(config.OTPConfig{}, nil)
	r.Register(newFakeProvider("b", true))
	r.Register(newFakeProvider("a", true))
	r.Register(newFakeProvider("hidden", false))

	list := r.List()
	if len(list) != 2 || list[0].ID() != "b" || list[1].ID() != "a" {
		ids := make([]string, len(list))
		for i, p := range list {
			ids[i] = p.ID()
		}
		t.Errorf("wrong list: %v", ids)
	}
}

func TestRegistryDuplicateRegistrationPanics(t *testing.T) {
	r := NewRegistry(config.OTPConfig{}, nil)
	r.Register(newFakeProvider("dup", true))

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration must panic")
		}
	}()
	r.Register(newFakeProvider("dup", true))
}

func TestRegistryEnabledForUserAggregates(t *testing.T) {
	first := newFakeProvider("first", true)
	second := newFakeProvider("second", true)
	hidden := newFakeProvider("hidden", false)

	r := NewRegistry(config.OTPConfig{}, nil)
	r.Register(first)
	r.Register(second)
	r.Register(hidden)

	ctx := t.Context()

	flagged, err := r.EnabledForUser(ctx, 1)
	if err != nil || flagged {
		t.Fatalf("no enrollments yet: %v %v", flagged, err)
	}

	second.enrolled[1] = true
	flagged, err = r.EnabledForUser(ctx, 1)
	if err != nil || !flagged {
		t.Fatalf("one enrollment is enough: %v %v", flagged, err)
	}

	// An enrollment with a deployment-disabled provider does not count.
	hidden.enrolled[2] = true
	flagged, err = r.EnabledForUser(ctx, 2)
	if err != nil || flagged {
		t.Fatalf("disabled provider enrollments must not flag the user: %v %v", flagged, err)
	}
}

func TestRegistryVerifyRoutesAcrossProviders(t *testing.T) {
	first := newFakeProvider("first", true)
	second := newFakeProvider("second", true)

	r := NewRegistry(config.OTPConfig{}, nil)
	r.Register(first)
	r.Register(second)

	ctx := t.Context()
	second.enrolled[1] = true

	// A code only the second provider accepts still verifies.
	ok, err := r.Verify(ctx, 1, "valid-second")
	if err != nil || !ok {
		t.Fatalf("second provider's code rejected: %v %v", ok, err)
	}

	// Unenrolled providers answering false never block verification, but a
	// code nobody accepts fails.
	ok, err = r.Verify(ctx, 1, "valid-first")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("code for an unenrolled provider must not verify")
	}
}

func TestRegistryVerifyNoProviders(t *testing.T) {
	r := NewRegistry(config.OTPConfig{}, nil)

	ok, err := r.Verify(t.Context(), 1, "anything")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("an empty registry verifies nothing")
	}
}
