// Package limiters holds the failed-login policy and the Redis counter used
// for attempts against unknown emails.
//
// [EmailBucket] is nil-safe: calling any method on a nil receiver is a no-op.
//
// # What this package must NOT do
//
//   - Import authcore.
//   - Decide consequences. Callers decide what a tripped policy means.
package limiters
