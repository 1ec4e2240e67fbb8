// Package token generates opaque refresh tokens and hashes them for storage.
//
// Refresh tokens are random bytes encoded as unpadded base64url. Only a keyed
// digest, HMAC-SHA256(token, key) in lowercase hex, is ever persisted, so a
// leaked ledger cannot be replayed without the key.
package token
