// Package rate provides the atomic counter primitive shared by the rate limiter
// and the brute-force guard.
//
// # Window semantics
//
// A counter key is created by INCR and receives its TTL only on the 0->1
// transition, inside one Lua script. Later increments in the same window never
// touch the TTL, so a caller cannot keep a window open by hitting it just before
// expiry.
//
// Lock keys are plain presence markers written with SET EX. Their TTL is
// independent of any counter.
//
// # What this package must NOT do
//
//   - Decide policy (limits, thresholds, fail-open vs fail-closed). That lives in
//     internal/limiters and the root engine.
//   - Hide backend failures. Every Redis error is wrapped as [ErrUnavailable].
package rate
