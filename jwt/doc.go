// Package jwt issues and verifies HS512 access tokens with a fixed issuer,
// audience and type tag.
//
// Verification pins the algorithm twice, once through the parser's valid
// method list and once in the key function, so a token signed with "none",
// HS256 or an asymmetric algorithm never reaches signature comparison with
// the shared secret.
package jwt
