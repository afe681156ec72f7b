// Package otp implements the pluggable second-factor framework.
//
// Every provider implements the Provider interface and keeps its enrollment
// as a single user-data blob under its own key namespace, so enable/disable
// are one atomic write each. Two providers ship by default:
//
//   - totp: RFC 6238 authenticator-app codes. Enrollment stores the shared
//     secret; enabling requires a current code as proof of possession.
//
//   - securitykey: WebAuthn hardware keys. Registration and assertion use
//     challenge/response flows with pending state held in an in-memory
//     challenge store.
//
// The Registry aggregates providers: a user is second-factor flagged when
// any enabled provider has an enrollment for them, and a submitted code is
// accepted when at least one enrolled provider validates it. "No enrollment"
// is an ordinary false answer, never an error — whether that blocks a
// request is the caller's decision.
package otp
