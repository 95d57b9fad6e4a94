// Package middleware adapts the goGuard engine to plain net/http handlers.
//
//   - [RequireAuth] resolves the bearer token to a user.
//   - [RequireRole] checks the resolved user's role.
//   - [RateLimit] applies a rate-limit scope to a per-request identity.
//   - [ClientIP] records the caller address for rate limiting and lockout.
//
// All decisions are delegated to the engine. Rejections are written as
// {"error": "..."} with the status from [Describe], which the echo server
// shares.
package middleware
