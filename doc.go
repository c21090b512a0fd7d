// Package authcore manages accounts, credentials and refresh sessions for a
// web backend: registration, login with lockout, refresh with replay
// detection, logout, password change, profile edits and session listing.
//
// A [Service] is built once through [Builder] and is safe for concurrent use.
// Access tokens are short-lived HS512 JWTs verified without touching any
// store. Refresh tokens are opaque random values; only their SHA-256 hash is
// persisted, in a [session.Store] (Redis by default).
//
// # Architecture boundaries
//
// authcore is the public surface. Persistence sits behind [user.Store] and
// [session.Store]; implementations live in store/memory, store/postgres,
// store/gormstore and session. HTTP, metrics export and audit fan-out are
// adapters in httpapi, middleware, metrics/export and auditkafka that depend
// on this package, never the other way round.
//
// # What this package must NOT do
//
//   - Persist or log a plaintext refresh token or password.
//   - Tell a caller whether an email is registered through Login errors.
//   - Return backend error text through [Error.Error]; infrastructure causes
//     are reachable only via errors.Unwrap for logging.
//
// # Session lifecycle
//
// A session is Active until it expires or is revoked; both are terminal.
// Presenting the refresh token of a revoked session revokes every session of
// the owner and fails with [ErrTokenReuseDetected].
package authcore
