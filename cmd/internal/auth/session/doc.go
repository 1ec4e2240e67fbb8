// Package session owns the refresh-token ledger and the access-token signer.
//
// A login creates one ledger record and one signed access token. A refresh
// exchanges a valid record for a successor inside a single atomic unit: the
// presented record is locked, marked rotated and linked to the new record
// before the call returns. Presenting a revoked record again is treated as a
// replay; depending on Config.RevokeOnReuse every live record of that owner
// is revoked as well.
//
// Access tokens are HS256 JWTs by default, or PASETO v4.public. They are
// verified by signature and expiry alone; the ledger is never consulted on
// the hot path.
//
// Refresh tokens are opaque random strings stored only as HMAC-SHA256 digests.
package session
