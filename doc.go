// Package goGuard is an authentication and abuse-control core: HS256 access and
// rotating refresh tokens, Redis-backed fixed-window rate limiting, and a
// per-(username, ip) brute-force login guard.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Call [Engine.Close] on shutdown to
// drain the audit dispatcher.
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Engine], [Builder], [Config],
// the store capability interfaces ([UserStore], [RefreshTokenStore]) and value
// types. Counter primitives, limiters, flow orchestration, metrics and audit
// dispatch live under internal/ and are never exported.
//
// Relational backends live in store/gormstore and store/pgstore. HTTP
// adapters live in middleware (net/http) and internal/httpapi (echo).
//
// # Failure policy
//
//   - Rate limiting fails open by default: an unreachable counter store admits
//     the request, logs a warning and increments MetricRateLimitFailOpen.
//   - The brute-force guard fails closed: login returns ErrStoreUnavailable.
//   - Persistent store failures are wrapped with ErrStoreUnavailable.
//
// # What this package must NOT do
//
//   - Log or audit raw tokens or passwords.
//   - Consult the refresh store while validating access tokens.
//   - Import any sub-package that re-imports goGuard (no import cycles).
package goGuard
