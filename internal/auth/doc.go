// Package auth provides authentication and authorization for the drawbridge API.
//
// # Credential Strategies
//
// Requests may carry a session cookie, a bearer access token, or both. Each
// strategy is an independent Verifier:
//
//   - Session: the cookie value is looked up as a session id. Every hit
//     refreshes last_action_time. Sessions without a backing user resolve to
//     a guest principal instead of failing.
//
//   - Token: the Authorization bearer value is looked up as an access token.
//     Every hit refreshes last_used_at. Token principals carry the token's
//     scope list.
//
// The Resolver chains them in fixed order, session first. The first valid
// result wins outright; a bearer header alongside a valid session is never
// evaluated. When both fail the caller gets one *UnauthorizedError whose
// challenge lists the attempted strategy names ("Session, Token").
// Tombstoned accounts fail with the same external shape as unknown
// credentials so account existence never leaks.
//
// # Principals
//
// The resolved Principal is attached to the request context via
// WithPrincipal/FromContext. Guest principals answer every probe with an
// inert default (no id, no scopes, HasCapability false) so handler code
// written for authenticated users degrades safely.
//
// # Second Factor
//
// Users with an active OTP enrollment are second-factor flagged. The
// resolver consults the provider registry through the OTPRegistry interface
// and records the outcome on the principal; enforcing it is a handler
// decision. The step-up login flow uses short-lived HS256 challenge tokens
// (ChallengeIssuer) between the password check and the OTP check.
package auth
