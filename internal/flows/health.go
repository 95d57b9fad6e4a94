package flows

import (
	"context"
	"time"
)

// HealthCheck is one named backend probe.
type HealthCheck struct {
	Name string
	Ping func(context.Context) error
}

type HealthDeps struct {
	Checks []HealthCheck
	Now    func() time.Time
}

// HealthResult reports overall status, total probe latency and the first
// failure per backend.
type HealthResult struct {
	Healthy  bool
	Latency  time.Duration
	Failures map[string]error
}

// RunHealth pings every backend in order. It does not stop at the first
// failure so the report names each unhealthy dependency.
func RunHealth(ctx context.Context, deps HealthDeps) HealthResult {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	start := now()
	res := HealthResult{Healthy: true}
	for _, check := range deps.Checks {
		if check.Ping == nil {
			continue
		}
		if err := check.Ping(ctx); err != nil {
			if res.Failures == nil {
				res.Failures = make(map[string]error)
			}
			res.Failures[check.Name] = err
			res.Healthy = false
		}
	}
	res.Latency = now().Sub(start)
	return res
}
