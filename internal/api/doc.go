// Package api serves the /v3 authentication surface: password and step-up
// login, signup, guest sessions, access token management, and second-factor
// enrollment. Handlers read the resolved principal from the request context;
// the auth middleware is applied per route so public endpoints stay open.
package api
