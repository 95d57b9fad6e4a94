// Package audit carries auth decisions (logins, lockouts, rotations,
// revocations, rate-limit hits) from the request path to pluggable sinks.
//
// [Dispatcher] owns one delivery goroutine and a bounded queue; it either
// drops on overflow or applies backpressure. Sinks write JSON lines, slog
// records, channel values or fan out. Which events exist is decided by the
// caller; this package imports nothing from goGuard.
package audit
