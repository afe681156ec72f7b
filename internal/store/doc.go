// Package store provides persistence for the drawbridge auth core.
//
// The Store interface covers four concerns:
//
//   - Users: registered accounts with role, language and activation state.
//     Deleted accounts are tombstoned by replacing the email with the
//     DeletedUserEmail sentinel rather than removing the row.
//
//   - Sessions: browser sessions identified by an opaque ID. A session with
//     a nil UserID is a guest session. Every successful lookup on the auth
//     path refreshes last_action_time via TouchSession.
//
//   - Access tokens: long-lived API tokens with a scope list. Each
//     successful use refreshes last_used_at via TouchAccessToken.
//
//   - User data: generic per-user keyed blobs. OTP providers keep their
//     enrollments here under provider-specific keys.
//
// Two implementations exist: SQLiteStore (modernc.org/sqlite, pure Go) for
// production and MockStore for tests. Lookups return ErrNotFound on absence;
// timestamp touches are last-write-wins and safe to abandon mid-request.
package store
