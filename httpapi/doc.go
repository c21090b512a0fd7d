// Package httpapi serves an authcore.Service over JSON/HTTP with a chi
// router.
//
// Refresh tokens never appear in response bodies. They travel in an HttpOnly,
// SameSite=Strict cookie scoped to /auth. Access tokens are returned in the
// body and presented back as "Authorization: Bearer".
//
// # What this package must NOT do
//
//   - Make credential decisions; every rule lives in the Service.
//   - Log passwords, tokens or digests.
package httpapi
