// Package internal contains helpers that are private to authcore: refresh
// token generation and hashing, and session identifiers.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - limiters: Redis-backed failed-attempt counting
//   - logging: slog handler construction for binaries
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
