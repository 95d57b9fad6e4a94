package security

import "time"

type PasswordReport struct {
	Algorithm   string
	Memory      uint32
	Time        uint32
	Parallelism uint8
	BcryptCost  int
	Upgrade     bool
}

type Report struct {
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

type ReportInput struct {
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	VerifyKeyCount      int
	Password            PasswordReport
	RateLimitEnabled    bool
	FailOpen            bool
	MaxLoginFailures    int
	FailureWindow       time.Duration
	LockDuration        time.Duration
	RevokeFamilyOnReuse bool
	AuditEnabled        bool
	MetricsEnabled      bool
}

// BuildReport never reports weaker settings than are in force: an unused
// password parameter is zeroed rather than echoed.
func BuildReport(input ReportInput) Report {
	pw := input.Password
	switch pw.Algorithm {
	case "bcrypt":
		pw.Memory, pw.Time, pw.Parallelism = 0, 0, 0
	default:
		pw.BcryptCost = 0
	}

	bruteForce := input.MaxLoginFailures > 0 &&
		input.FailureWindow > 0 &&
		input.LockDuration > 0

	return Report{
		SigningAlgorithm:       "HS256",
		KeyRotationActive:      input.VerifyKeyCount > 0,
		AccessTTL:              input.AccessTTL,
		RefreshTTL:             input.RefreshTTL,
		Password:               pw,
		RateLimitingActive:     input.RateLimitEnabled,
		RateLimitFailOpen:      input.RateLimitEnabled && input.FailOpen,
		BruteForceActive:       bruteForce,
		LockDuration:           input.LockDuration,
		FamilyRevocationActive: input.RevokeFamilyOnReuse,
		AuditActive:            input.AuditEnabled,
		MetricsActive:          input.MetricsEnabled,
	}
}
