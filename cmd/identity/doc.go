// Package identity implements Gather's user & credential foundation.
//
// It contains the canonical User model, Argon2id password hashing, ULID id
// generation, and the user store boundary used by the HTTP layer.
//
// This package is intentionally dependency-light and security-first.
package identity
