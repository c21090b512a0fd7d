// Package user defines the credential record and the store contract the
// authentication service persists users through.
//
// # Records
//
// [User] is a plain value. Stores return fresh copies and never hand out
// pointers into their own state; every mutation goes through [Store.Update]
// or [Store.RecordLoginFailure], both of which return the new state.
//
// # Email identity
//
// Emails are compared case-insensitively. [NormalizeEmail] is the single
// canonical form and stores must enforce uniqueness over it, reporting
// collisions as [ErrEmailConflict].
//
// # What this package must NOT do
//
//   - Hash or verify passwords.
//   - Decide lockout policy (stores only apply the atomic increment they are asked for).
//   - Import authcore or any storage driver.
package user
