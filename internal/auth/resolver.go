// ABOUTME: Composite auth resolver chaining session and bearer strategies
// ABOUTME: Session wins outright; both failing yields one aggregate unauthorized error

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/drawbridgehq/drawbridge/internal/metrics"
)

// SessionDataOTPVerified is the session data key recording a completed
// second-factor step-up for the session's lifetime.
const SessionDataOTPVerified = "otp_verified"

// OTPRegistry is the surface the resolver needs from the second-factor
// provider registry. Providers stay behind it; adding one never changes the
// resolver.
type OTPRegistry interface {
	// EnabledForUser reports whether the user has at least one active
	// enrollment with an enabled provider.
	EnabledForUser(ctx context.Context, userID int64) (bool, error)
	// Verify routes the submitted code to every enabled provider the user
	// is enrolled with and reports whether at least one accepted it.
	Verify(ctx context.Context, userID int64, code string) (bool, error)
}

// Resolver orchestrates the credential strategies in priority order and
// builds the final principal for a request.
//
// The evaluation order is fixed: session first, bearer token second, each
// attempted independently. A failure in one strategy is swallowed and never
// short-circuits the other, so a stale bearer token cannot block a valid
// session-based request and vice versa.
type Resolver struct {
	session Verifier
	bearer  Verifier
	otp     OTPRegistry // may be nil when no providers are registered
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewResolver creates a resolver over the given strategy verifiers.
// otp and m may be nil.
func NewResolver(session, bearer Verifier, otp OTPRegistry, m *metrics.Metrics) *Resolver {
	return &Resolver{
		session: session,
		bearer:  bearer,
		otp:     otp,
		metrics: m,
		logger:  slog.Default().With("component", "auth"),
	}
}

// Resolve turns raw credentials into a principal.
//
// A valid session always wins, even a guest session presented alongside a
// valid bearer token (the bearer is not attempted at all in that case).
// When no strategy authenticates, the returned error is an
// *UnauthorizedError whose challenge enumerates both strategy names in
// attempt order; any other error is an infrastructure failure.
//
// submittedOTP, when non-empty, is verified through the registry for
// second-factor flagged users. A missing or unverifiable code never fails
// resolution here; it only leaves OTPVerified false.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials, submittedOTP string) (*Principal, error) {
	start := time.Now()

	if creds.HasSession() {
		result, err := r.session.Verify(ctx, creds.SessionID)
		if err != nil {
			r.observe(StrategySession, "error", start)
			return nil, err
		}
		if result.Valid {
			return r.finish(ctx, result, submittedOTP, start)
		}
		r.logger.Debug("strategy failed", "strategy", StrategySession, "reason", result.reason)
	}

	if creds.HasToken() {
		result, err := r.bearer.Verify(ctx, creds.Token)
		if err != nil {
			r.observe(StrategyToken, "error", start)
			return nil, err
		}
		if result.Valid {
			return r.finish(ctx, result, submittedOTP, start)
		}
		r.logger.Debug("strategy failed", "strategy", StrategyToken, "reason", result.reason)
	}

	r.observe("none", "rejected", start)
	return nil, &UnauthorizedError{Strategies: []string{StrategySession, StrategyToken}}
}

// finish applies the second-factor gate and records metrics for a valid
// strategy result.
func (r *Resolver) finish(ctx context.Context, result *Result, submittedOTP string, start time.Time) (*Principal, error) {
	p := result.Principal

	if p.IsAuthenticated() && r.otp != nil {
		required, err := r.otp.EnabledForUser(ctx, p.ID)
		if err != nil {
			r.observe(result.Strategy, "error", start)
			return nil, err
		}
		p.OTPRequired = required

		if required {
			if p.SessionData[SessionDataOTPVerified] == "true" {
				p.OTPVerified = true
			} else if submittedOTP != "" {
				ok, err := r.otp.Verify(ctx, p.ID, submittedOTP)
				if err != nil {
					r.observe(result.Strategy, "error", start)
					return nil, err
				}
				p.OTPVerified = ok
			}
		}
	}

	outcome := "success"
	if p.IsGuest() {
		outcome = "guest"
	}
	r.observe(result.Strategy, outcome, start)
	return p, nil
}

func (r *Resolver) observe(strategy, outcome string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveResolution(strategy, outcome, time.Since(start))
}
