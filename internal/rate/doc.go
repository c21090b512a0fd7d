// Package rate provides a Redis fixed-window counter shared by every
// process that talks to the same Redis.
//
// # Window semantics
//
// INCR, then EXPIRE on the first hit of a window. Keys are
// "<prefix>:<key>".
//
// # What this package must NOT do
//
//   - Decide what to do when Redis fails; callers choose fail-open or closed.
//   - Be imported outside the authcore module.
package rate
