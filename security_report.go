package goGuard

import (
	"time"

	"github.com/MrEthical07/goGuard/internal/security"
)

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	SigningAlgorithm       string
	KeyRotationActive      bool
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	Password               PasswordReport
	RateLimitingActive     bool
	RateLimitFailOpen      bool
	BruteForceActive       bool
	LockDuration           time.Duration
	FamilyRevocationActive bool
	AuditActive            bool
	MetricsActive          bool
}

// PasswordReport describes the default hasher parameters. Fields that do not
// apply to Algorithm are zero.
type PasswordReport struct {
	Algorithm      string
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	BcryptCost     int
	UpgradeOnLogin bool
}

// SecurityReport summarizes the effective configuration. It performs no I/O.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	r := security.BuildReport(security.ReportInput{
		AccessTTL:      cfg.JWT.AccessTTL,
		RefreshTTL:     cfg.JWT.RefreshTTL,
		VerifyKeyCount: len(cfg.JWT.VerifyKeys),
		Password: security.PasswordReport{
			Algorithm:   cfg.Password.Algorithm,
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			BcryptCost:  cfg.Password.BcryptCost,
			Upgrade:     cfg.Password.UpgradeOnLogin,
		},
		RateLimitEnabled:    cfg.RateLimit.Enabled,
		FailOpen:            cfg.RateLimit.FailOpen,
		MaxLoginFailures:    cfg.BruteForce.MaxFailures,
		FailureWindow:       cfg.BruteForce.Window,
		LockDuration:        cfg.BruteForce.LockDuration,
		RevokeFamilyOnReuse: cfg.Refresh.RevokeFamilyOnReuse,
		AuditEnabled:        cfg.Audit.Enabled,
		MetricsEnabled:      cfg.Metrics.Enabled,
	})

	return SecurityReport{
		SigningAlgorithm:  r.SigningAlgorithm,
		KeyRotationActive: r.KeyRotationActive,
		AccessTTL:         r.AccessTTL,
		RefreshTTL:        r.RefreshTTL,
		Password: PasswordReport{
			Algorithm:      r.Password.Algorithm,
			Memory:         r.Password.Memory,
			Time:           r.Password.Time,
			Parallelism:    r.Password.Parallelism,
			BcryptCost:     r.Password.BcryptCost,
			UpgradeOnLogin: r.Password.Upgrade,
		},
		RateLimitingActive:     r.RateLimitingActive,
		RateLimitFailOpen:      r.RateLimitFailOpen,
		BruteForceActive:       r.BruteForceActive,
		LockDuration:           r.LockDuration,
		FamilyRevocationActive: r.FamilyRevocationActive,
		AuditActive:            r.AuditActive,
		MetricsActive:          r.MetricsActive,
	}
}
