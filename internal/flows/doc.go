// Package flows contains the orchestration behind every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunLogout, RunRegister,
// RunResolveUser, RunHealth) accepts a typed dependency struct and returns a
// result with a failure kind. The root package maps kinds to sentinel errors,
// metrics and audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goGuard (import cycle).
//   - Perform I/O directly; all I/O goes through dependency functions and interfaces.
package flows
