// Package security derives a read-only posture report from the effective
// engine settings. It has no side effects and performs no I/O.
package security
