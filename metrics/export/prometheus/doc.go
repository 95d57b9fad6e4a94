// Package prometheus exposes engine counters and the token resolution
// latency histogram in Prometheus text format.
//
// Counter names follow goguard_*_total. The handler is not registered
// anywhere; callers mount it.
package prometheus
