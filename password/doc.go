// Package password implements password hashing and verification with
// Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads parameters from the stored digest, so a [Hasher]
// configured with stronger costs still verifies old hashes;
// [Hasher.NeedsUpgrade] tells the caller to re-hash on the next successful
// login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords (callers supply plaintext, receive digests).
//   - Import any other authkit package.
//   - Log plaintext passwords.
package password
