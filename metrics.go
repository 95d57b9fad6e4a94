package goGuard

import "github.com/MrEthical07/goGuard/internal/metrics"

// MetricID identifies one engine counter. Values are stable within a release
// and index the snapshot maps.
type MetricID = metrics.MetricID

const (
	MetricLoginSuccess         = metrics.MetricLoginSuccess
	MetricLoginFailure         = metrics.MetricLoginFailure
	MetricLoginRateLimited     = metrics.MetricLoginRateLimited
	MetricLoginLocked          = metrics.MetricLoginLocked
	MetricLockoutTriggered     = metrics.MetricLockoutTriggered
	MetricRefreshSuccess       = metrics.MetricRefreshSuccess
	MetricRefreshFailure       = metrics.MetricRefreshFailure
	MetricRefreshRateLimited   = metrics.MetricRefreshRateLimited
	MetricRefreshReuseDetected = metrics.MetricRefreshReuseDetected
	MetricRefreshFamilyRevoked = metrics.MetricRefreshFamilyRevoked
	MetricRateLimitHit         = metrics.MetricRateLimitHit
	MetricRateLimitFailOpen    = metrics.MetricRateLimitFailOpen
	MetricRegisterSuccess      = metrics.MetricRegisterSuccess
	MetricRegisterDuplicate    = metrics.MetricRegisterDuplicate
	MetricRegisterRateLimited  = metrics.MetricRegisterRateLimited
	MetricLogout               = metrics.MetricLogout
	MetricLogoutAll            = metrics.MetricLogoutAll
	MetricTokenRejected        = metrics.MetricTokenRejected
	MetricRoleForbidden        = metrics.MetricRoleForbidden
	MetricStoreUnavailable     = metrics.MetricStoreUnavailable
	MetricPasswordRehash       = metrics.MetricPasswordRehash
	MetricValidateLatency      = metrics.MetricValidateLatency
)

// MetricsSnapshot is a point-in-time copy of every counter and the
// validation latency histogram.
type MetricsSnapshot = metrics.Snapshot

// MetricsConfig toggles counter and histogram collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func newMetrics(cfg MetricsConfig) *metrics.Metrics {
	return metrics.New(metrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
