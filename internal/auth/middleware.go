// ABOUTME: HTTP middleware resolving credentials into a request principal
// ABOUTME: Rejected requests get 401 with a WWW-Authenticate challenge listing attempted strategies

package auth

import (
	"errors"
	"log/slog"
	"net/http"
)

// Middleware resolves every request through the resolver and attaches the
// principal to the request context. Requests with no valid credential are
// rejected with 401 and a challenge enumerating the attempted strategies.
func Middleware(resolver *Resolver, cookieName string) func(http.Handler) http.Handler {
	logger := slog.Default().With("component", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := ExtractCredentials(r, cookieName)

			principal, err := resolver.Resolve(r.Context(), creds, "")
			if err != nil {
				writeResolveError(w, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// OptionalMiddleware resolves credentials when present but admits requests
// without any as an anonymous principal. Useful for endpoints that behave
// differently for authenticated and anonymous callers.
func OptionalMiddleware(resolver *Resolver, cookieName string) func(http.Handler) http.Handler {
	logger := slog.Default().With("component", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := ExtractCredentials(r, cookieName)

			principal, err := resolver.Resolve(r.Context(), creds, "")
			if err != nil {
				if IsUnauthorized(err) {
					principal = Anonymous()
				} else {
					writeResolveError(w, logger, err)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdminHTTP rejects requests whose principal is not an authenticated
// admin. Must be used after Middleware.
func RequireAdminHTTP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := FromContext(r.Context())
			if principal == nil {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}

			if !principal.IsAdmin() {
				http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeResolveError maps resolver errors to HTTP responses. Expected auth
// failures become 401 with the strategy challenge; everything else is an
// infrastructure failure and becomes 500.
func writeResolveError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ue *UnauthorizedError
	if errors.As(err, &ue) {
		w.Header().Set("WWW-Authenticate", ue.Challenge())
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	logger.Error("credential resolution failed", "error", err)
	http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
}
