// Package password hashes and verifies user passwords for sessiond.
//
// New hashes are Argon2id in the PHC string form
// ($argon2id$v=19$m=..,t=..,p=..$salt$key). Verify also accepts bcrypt
// hashes ($2a$, $2b$, $2y$) so that credentials provisioned by older tooling
// keep working.
//
// Encoded hashes are treated as untrusted input: Verify rejects malformed
// strings and Argon2id parameters far beyond the configured cost.
package password
