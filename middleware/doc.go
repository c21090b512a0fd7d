// Package middleware adapts authcore access-token validation to net/http.
//
// # Guards
//
//   - [RequireAccess]: bearer access token check, no store I/O.
//   - [RequireAdmin]: loads the account and requires the admin flag.
//
// The validated [authcore.Identity] is available to handlers through
// [IdentityFromContext].
//
// # What this package must NOT do
//
//   - Parse or sign JWTs directly (delegates to the Service).
//   - Touch refresh tokens or sessions.
package middleware
