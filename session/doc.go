// Package session defines the refresh-session record, the store contract the
// session manager persists through, and a Redis implementation of that store.
//
// # Records
//
// A [Session] binds one opaque refresh token to a user. Only the SHA-256 of
// the token is persisted ([HashToken]); the token itself is returned to the
// caller once, at creation or rotation.
//
// Revocation is monotonic. Revoked and expired records, and the hashes a
// rotation replaced, are kept until [Store.DeleteExpired] removes them, so that
// a replayed token can still be recognised.
//
// # Redis layout
//
// [RedisStore] keeps each session in a hash and maintains four indexes:
//
//   - {prefix}:s:<id>        hash with the encoded session fields
//   - {prefix}:t:<tokenHash> string pointing at the session id
//   - {prefix}:p:<id>        set of token hashes replaced by rotation
//   - {prefix}:u:<userID>    zset of session ids scored by creation time
//   - {prefix}:exp           zset of session ids scored by expiry
//
// The braces are a Redis Cluster hash tag. The revoke-all and sweep scripts
// derive keys from index contents, so every key of one store must hash to the
// same slot. Clustered deployments therefore put one store on one node.
//
// Conditional writes (revoke, revoke-all, token swap, sweep) run as Lua
// scripts so that concurrent callers observe either the old or the new state.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, or password (no upward imports).
//   - Decide replay or expiry policy (the session manager owns transitions).
//   - Store plaintext refresh tokens.
package session
