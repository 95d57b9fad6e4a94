// Package limiters turns the internal/rate counter primitive into the two
// abuse-control policies used on authentication paths.
//
// # Limiters
//
//   - [FixedWindow]: request-count gate per (scope, identity) under key
//     rl:{scope}:{identity}. Fixed windows allow up to twice the limit across a
//     window boundary; callers accept that approximation.
//   - [BruteForce]: failure-count gate per (username, ip) that installs a
//     time-boxed lock once the threshold is reached.
//
// Both limiters are nil-safe: a nil receiver allows everything.
//
// # What this package must NOT do
//
//   - Import goGuard or any sibling internal package except internal/rate.
//   - Choose fail-open or fail-closed. Backend errors are returned wrapped in
//     rate.ErrUnavailable and the engine applies its policy.
package limiters
