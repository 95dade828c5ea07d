// Package auth implements cookie-based authentication for the HTTP API.
//
// A signed JWT is issued at register/login time and carried in an
// httpOnly cookie. Every authenticated request resolves the token back
// to a stored user, so role changes take effect without re-login.
package auth
