// Package identity holds the credential store: users, their roles and the
// password hashes that login verifies against.
//
// The store is read-mostly. Sessions and refresh tokens live elsewhere
// (see cmd/internal/auth/session); identity never sees token material.
package identity
