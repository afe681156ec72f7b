// ABOUTME: Registry of second-factor providers keyed by provider id
// ABOUTME: Routes verification to enrolled providers; at least one must succeed

package otp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/drawbridgehq/drawbridge/internal/config"
	"github.com/drawbridgehq/drawbridge/internal/metrics"
)

// Registry holds the registered providers. Providers are registered once at
// startup; callers iterate the registry rather than special-casing provider
// names, so adding a provider never touches the resolver.
type Registry struct {
	cfg       config.OTPConfig
	providers map[string]Provider
	order     []string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(cfg config.OTPConfig, m *metrics.Metrics) *Registry {
	return &Registry{
		cfg:       cfg,
		providers: make(map[string]Provider),
		metrics:   m,
		logger:    slog.Default().With("component", "otp"),
	}
}

// Register adds a provider. Registering the same id twice is a programmer
// error and panics at startup.
func (r *Registry) Register(p Provider) {
	if _, exists := r.providers[p.ID()]; exists {
		panic(fmt.Sprintf("otp: provider %q registered twice", p.ID()))
	}
	r.providers[p.ID()] = p
	r.order = append(r.order, p.ID())
	r.logger.Info("registered otp provider", "provider", p.ID(), "enabled", p.Enabled(r.cfg))
}

// Get returns the provider by id, if it is registered and enabled for the
// deployment.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	if !ok || !p.Enabled(r.cfg) {
		return nil, false
	}
	return p, true
}

// List returns the deployment-enabled providers in registration order.
func (r *Registry) List() []Provider {
	var out []Provider
	for _, id := range r.order {
		if p := r.providers[id]; p.Enabled(r.cfg) {
			out = append(out, p)
		}
	}
	return out
}

// EnabledForUser reports whether the user has at least one active enrollment
// with a deployment-enabled provider.
func (r *Registry) EnabledForUser(ctx context.Context, userID int64) (bool, error) {
	for _, p := range r.List() {
		enrolled, err := p.EnabledForUser(ctx, userID)
		if err != nil {
			return false, fmt.Errorf("checking %s enrollment: %w", p.ID(), err)
		}
		if enrolled {
			return true, nil
		}
	}
	return false, nil
}

// Verify routes the submitted code to every enabled provider the user is
// enrolled with. It reports true when at least one provider accepts the
// code; providers the user is not enrolled with answer false and are skipped.
func (r *Registry) Verify(ctx context.Context, userID int64, code string) (bool, error) {
	for _, p := range r.List() {
		ok, err := p.Verify(ctx, userID, code)
		if err != nil {
			return false, fmt.Errorf("verifying %s code: %w", p.ID(), err)
		}

		outcome := "failure"
		if ok {
			outcome = "success"
		}
		if r.metrics != nil {
			r.metrics.ObserveOTPVerification(p.ID(), outcome)
		}

		if ok {
			return true, nil
		}
	}
	return false, nil
}
