package goGuard

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the engine configuration. Build validates a copy, so mutating a
// Config after Build has no effect on the engine.
type Config struct {
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	BruteForce BruteForceConfig
	Refresh    RefreshConfig
	Account    AccountConfig
	Password   PasswordConfig
	Counter    CounterConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// JWTConfig holds HS256 signing material and token lifetimes.
type JWTConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
	KeyID      string
	// VerifyKeys maps old kids to their secrets during key rotation.
	VerifyKeys map[string][]byte
}

// RateLimitRule bounds one scope: at most Limit requests per Window.
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds the per-scope fixed-window limits.
type RateLimitConfig struct {
	Enabled bool
	// FailOpen admits requests when the counter store is unreachable.
	FailOpen bool
	Login    RateLimitRule
	Register RateLimitRule
	Refresh  RateLimitRule
	API      RateLimitRule
}

// BruteForceConfig controls the per-(username, ip) login lockout.
type BruteForceConfig struct {
	MaxFailures  int
	Window       time.Duration
	LockDuration time.Duration
}

type RefreshConfig struct {
	// RevokeFamilyOnReuse revokes every live refresh token of a user when an
	// already revoked token of theirs is presented again.
	RevokeFamilyOnReuse bool
}

// AccountConfig bounds registration input. Lengths count runes.
type AccountConfig struct {
	UsernameMinLength int
	UsernameMaxLength int
	PasswordMinLength int
	PasswordMaxLength int
	DefaultRole       Role
}

// PasswordConfig selects the default hasher built when none is supplied.
type PasswordConfig struct {
	// Algorithm is "argon2" or "bcrypt".
	Algorithm   string
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	BcryptCost  int
	// UpgradeOnLogin rehashes on successful login when the stored hash is weaker.
	UpgradeOnLogin bool
}

// CounterConfig tunes the Redis-backed counter store.
type CounterConfig struct {
	Namespace string
	OpTimeout time.Duration
}

// DefaultConfig returns the documented defaults. JWT.Secret is left empty and
// must be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			FailOpen: true,
			Login:    RateLimitRule{Limit: 10, Window: time.Minute},
			Register: RateLimitRule{Limit: 5, Window: time.Minute},
			Refresh:  RateLimitRule{Limit: 30, Window: time.Minute},
			API:      RateLimitRule{Limit: 120, Window: time.Minute},
		},
		BruteForce: BruteForceConfig{
			MaxFailures:  5,
			Window:       120 * time.Second,
			LockDuration: 60 * time.Second,
		},
		Account: AccountConfig{
			UsernameMinLength: 3,
			UsernameMaxLength: 50,
			PasswordMinLength: 6,
			PasswordMaxLength: 100,
			DefaultRole:       RoleUser,
		},
		Password: PasswordConfig{
			Algorithm:      "argon2",
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Counter: CounterConfig{
			OpTimeout: 500 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < 8 {
		return errors.New("JWT Secret must be at least 8 bytes")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be longer than AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Rate limits
	if c.RateLimit.Enabled {
		for name, rule := range map[string]RateLimitRule{
			"Login":    c.RateLimit.Login,
			"Register": c.RateLimit.Register,
			"Refresh":  c.RateLimit.Refresh,
			"API":      c.RateLimit.API,
		} {
			if rule.Limit <= 0 {
				return fmt.Errorf("RateLimit %s Limit must be > 0", name)
			}
			if rule.Window < time.Second {
				return fmt.Errorf("RateLimit %s Window must be >= 1s", name)
			}
		}
	}

	// Brute force
	if c.BruteForce.MaxFailures <= 0 {
		return errors.New("BruteForce MaxFailures must be > 0")
	}
	if c.BruteForce.Window < time.Second {
		return errors.New("BruteForce Window must be >= 1s")
	}
	if c.BruteForce.LockDuration < time.Second {
		return errors.New("BruteForce LockDuration must be >= 1s")
	}

	// Account
	if c.Account.UsernameMinLength < 1 || c.Account.UsernameMaxLength < c.Account.UsernameMinLength {
		return errors.New("Account username length bounds are invalid")
	}
	if c.Account.PasswordMinLength < 1 || c.Account.PasswordMaxLength < c.Account.PasswordMinLength {
		return errors.New("Account password length bounds are invalid")
	}
	if !c.Account.DefaultRole.Valid() {
		return errors.New("Account DefaultRole must be user or admin")
	}

	// Password
	switch strings.ToLower(c.Password.Algorithm) {
	case "argon2", "argon2id":
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	case "bcrypt":
		if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31) {
			return errors.New("Password BcryptCost must be between 4 and 31")
		}
		if c.Account.PasswordMaxLength > 72 {
			return errors.New("Account PasswordMaxLength must be <= 72 with bcrypt")
		}
	default:
		return errors.New("Password Algorithm must be 'argon2' or 'bcrypt'")
	}

	if c.Counter.OpTimeout < 0 {
		return errors.New("Counter OpTimeout must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
