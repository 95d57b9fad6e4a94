// Package config loads the server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/joho/godotenv"
)

const devSecret = "dev-secret"

// ErrInsecureSecret is returned when production runs without a real JWT secret.
var ErrInsecureSecret = errors.New("JWT_SECRET must be set to a non-default value in production")

// Limit is one RL_* scope setting.
type Limit struct {
	Limit  int
	Window time.Duration
}

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	JWTSecret  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RedisURL empty outside production starts an embedded miniredis.
	RedisURL     string
	DatabaseURL  string
	StoreBackend string

	PasswordHasher string

	RateLimitEnabled  bool
	RateLimitFailOpen bool
	LoginLimit        Limit
	RegisterLimit     Limit
	RefreshLimit      Limit
	APILimit          Limit

	BFMaxFailures  int
	BFWindow       time.Duration
	BFLockDuration time.Duration

	RefreshFamilyRevocation bool
	TrustProxy              bool

	SentryDSN       string
	KafkaBrokers    []string
	KafkaAuditTopic string
	AuditEnabled    bool
	MetricsEnabled  bool
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup. Tests pass a map-backed lookup.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}

	cfg := Config{
		AppEnv:   r.str("APP_ENV", "development"),
		HTTPAddr: r.str("HTTP_ADDR", ":8000"),
		LogLevel: r.str("LOG_LEVEL", "info"),

		JWTSecret:  []byte(r.str("JWT_SECRET", "")),
		AccessTTL:  time.Duration(r.integer("JWT_ACCESS_MINUTES", 15)) * time.Minute,
		RefreshTTL: time.Duration(r.integer("JWT_REFRESH_DAYS", 7)) * 24 * time.Hour,

		RedisURL:     r.str("REDIS_URL", ""),
		DatabaseURL:  r.str("DATABASE_URL", "sqlite://goguard.db"),
		StoreBackend: strings.ToLower(r.str("STORE_BACKEND", "gorm")),

		PasswordHasher: strings.ToLower(r.str("PASSWORD_HASHER", "argon2")),

		RateLimitEnabled:  r.boolean("RATE_LIMIT_ENABLED", true),
		RateLimitFailOpen: r.boolean("RATE_LIMIT_FAIL_OPEN", true),
		LoginLimit:        r.limit("LOGIN", 10, 60),
		RegisterLimit:     r.limit("REGISTER", 5, 60),
		RefreshLimit:      r.limit("REFRESH", 30, 60),
		APILimit:          r.limit("API", 120, 60),

		BFMaxFailures:  r.integer("BF_MAX_FAILURES", 5),
		BFWindow:       time.Duration(r.integer("BF_WINDOW_SECONDS", 120)) * time.Second,
		BFLockDuration: time.Duration(r.integer("BF_LOCK_SECONDS", 60)) * time.Second,

		RefreshFamilyRevocation: r.boolean("REFRESH_FAMILY_REVOCATION", false),
		TrustProxy:              r.boolean("TRUST_PROXY", false),

		SentryDSN:       r.str("SENTRY_DSN", ""),
		KafkaBrokers:    csv(r.str("KAFKA_BROKERS", "")),
		KafkaAuditTopic: r.str("KAFKA_AUDIT_TOPIC", "goguard.audit"),
		AuditEnabled:    r.boolean("AUDIT_ENABLED", false),
		MetricsEnabled:  r.boolean("METRICS_ENABLED", true),
	}
	if r.err != nil {
		return Config{}, r.err
	}

	if len(cfg.JWTSecret) == 0 {
		if cfg.Production() {
			return Config{}, ErrInsecureSecret
		}
		cfg.JWTSecret = []byte(devSecret)
	}
	if cfg.Production() && string(cfg.JWTSecret) == devSecret {
		return Config{}, ErrInsecureSecret
	}
	if cfg.Production() && cfg.RedisURL == "" {
		return Config{}, errors.New("REDIS_URL is required in production")
	}
	switch cfg.StoreBackend {
	case "gorm", "pgx":
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND must be gorm or pgx, got %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Engine maps the settings onto an engine configuration. Validation happens
// in Builder.Build.
func (c Config) Engine() goGuard.Config {
	cfg := goGuard.DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), c.JWTSecret...)
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL

	cfg.RateLimit.Enabled = c.RateLimitEnabled
	cfg.RateLimit.FailOpen = c.RateLimitFailOpen
	cfg.RateLimit.Login = goGuard.RateLimitRule(c.LoginLimit)
	cfg.RateLimit.Register = goGuard.RateLimitRule(c.RegisterLimit)
	cfg.RateLimit.Refresh = goGuard.RateLimitRule(c.RefreshLimit)
	cfg.RateLimit.API = goGuard.RateLimitRule(c.APILimit)

	cfg.BruteForce.MaxFailures = c.BFMaxFailures
	cfg.BruteForce.Window = c.BFWindow
	cfg.BruteForce.LockDuration = c.BFLockDuration

	cfg.Refresh.RevokeFamilyOnReuse = c.RefreshFamilyRevocation
	cfg.Password.Algorithm = c.PasswordHasher
	if c.PasswordHasher == "bcrypt" && cfg.Account.PasswordMaxLength > 72 {
		cfg.Account.PasswordMaxLength = 72
	}

	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	return cfg
}

type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) str(key, def string) string {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return def
	}
	return v
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

// limit reads RL_{scope}_LIMIT and RL_{scope}_WINDOW_SECONDS.
func (r *reader) limit(scope string, limit, windowSeconds int) Limit {
	return Limit{
		Limit:  r.integer("RL_"+scope+"_LIMIT", limit),
		Window: time.Duration(r.integer("RL_"+scope+"_WINDOW_SECONDS", windowSeconds)) * time.Second,
	}
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func csv(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
