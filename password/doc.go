// Package password implements argon2id password hashing.
//
// # Output format
//
// Digests are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads cost parameters from the digest, so raising the
// configured cost never invalidates stored digests. [Argon2.NeedsUpgrade]
// reports when a digest should be re-derived on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve digests.
//   - Import any other authcore package.
//   - Log plaintext passwords.
package password
