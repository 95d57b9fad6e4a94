// Package metrics counts auth outcomes (logins, lockouts, rotations,
// rate-limit hits, fail-open admissions) and times token validation.
//
// Each counter sits in its own padded slot and is bumped with a single atomic
// add, so the hot path never allocates or locks. Validation latency lands in
// eight fixed buckets from 5ms to +Inf. Exporters under metrics/export read
// [Snapshot] values; this package does no I/O and keeps no global registry.
package metrics
