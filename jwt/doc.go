// Package jwt issues and verifies the HS256 access and refresh tokens used by
// goGuard.
//
// Payload fields are fixed: type ("access" or "refresh"), sub, role (access
// only), iat, exp and jti. Verification checks the signature first and the
// expiry second, and reports exactly two failure classes: [ErrTokenInvalid] and
// [ErrTokenExpired].
//
// # What this package must NOT do
//
//   - Consult any store. Revocation of refresh tokens is the engine's job.
//   - Accept any algorithm other than HS256.
package jwt
