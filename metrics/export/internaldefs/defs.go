package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goGuard.MetricLoginSuccess, Name: "goguard_login_success_total", Help: "Successful login attempts."},
	{ID: goGuard.MetricLoginFailure, Name: "goguard_login_failure_total", Help: "Failed login attempts."},
	{ID: goGuard.MetricLoginRateLimited, Name: "goguard_login_rate_limited_total", Help: "Login attempts denied by the rate limiter."},
	{ID: goGuard.MetricLoginLocked, Name: "goguard_login_locked_total", Help: "Login attempts rejected by an active lockout."},
	{ID: goGuard.MetricLockoutTriggered, Name: "goguard_lockout_triggered_total", Help: "Lockouts started by the brute-force guard."},
	{ID: goGuard.MetricRefreshSuccess, Name: "goguard_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goGuard.MetricRefreshFailure, Name: "goguard_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: goGuard.MetricRefreshRateLimited, Name: "goguard_refresh_rate_limited_total", Help: "Refresh attempts denied by the rate limiter."},
	{ID: goGuard.MetricRefreshReuseDetected, Name: "goguard_refresh_reuse_detected_total", Help: "Presentations of an already revoked refresh token."},
	{ID: goGuard.MetricRefreshFamilyRevoked, Name: "goguard_refresh_family_revoked_total", Help: "Refresh token families revoked after reuse."},
	{ID: goGuard.MetricRateLimitHit, Name: "goguard_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: goGuard.MetricRateLimitFailOpen, Name: "goguard_rate_limit_fail_open_total", Help: "Rate-limit checks allowed because the counter backend was unavailable."},
	{ID: goGuard.MetricRegisterSuccess, Name: "goguard_register_success_total", Help: "Successful registrations."},
	{ID: goGuard.MetricRegisterDuplicate, Name: "goguard_register_duplicate_total", Help: "Registrations rejected as duplicate usernames."},
	{ID: goGuard.MetricRegisterRateLimited, Name: "goguard_register_rate_limited_total", Help: "Registrations denied by the rate limiter."},
	{ID: goGuard.MetricLogout, Name: "goguard_logout_total", Help: "Single-token logout operations."},
	{ID: goGuard.MetricLogoutAll, Name: "goguard_logout_all_total", Help: "Logout-all operations."},
	{ID: goGuard.MetricTokenRejected, Name: "goguard_token_rejected_total", Help: "Access tokens rejected during resolution."},
	{ID: goGuard.MetricRoleForbidden, Name: "goguard_role_forbidden_total", Help: "Role checks that denied access."},
	{ID: goGuard.MetricStoreUnavailable, Name: "goguard_store_unavailable_total", Help: "Operations failed by an unavailable backing store."},
	{ID: goGuard.MetricPasswordRehash, Name: "goguard_password_rehash_total", Help: "Password hashes upgraded on login."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricValidateLatency, Name: "goguard_validate_latency_seconds", Help: "Access token resolution latency."},
}

// HistogramBounds are the upper bounds rendered as Prometheus le labels.
// They mirror the engine buckets: 5ms through 500ms, then +Inf.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket in instrument-safe form.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing slots.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
