package goGuard

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/password"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. It is single-use: a second Build fails.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	// counter overrides the Redis counter; set by package tests.
	counter rate.Counter

	users     UserStore
	refresh   RefreshTokenStore
	hasher    PasswordHasher
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the counter store backend. Any go-redis client works,
// including cluster and failover clients.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithRefreshTokenStore(s RefreshTokenStore) *Builder {
	b.refresh = s
	return b
}

// WithStore sets both halves of the persistent store from one backend.
func (b *Builder) WithStore(s interface {
	UserStore
	RefreshTokenStore
}) *Builder {
	b.users = s
	b.refresh = s
	return b
}

// WithPasswordHasher replaces the hasher derived from Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now for token timestamps and audit events.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil && b.counter == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.refresh == nil {
		return nil, errors.New("refresh token store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = logging.Discard()
	}

	// -------- COUNTERS AND LIMITERS --------
	counter := b.counter
	if counter == nil {
		counter = rate.NewRedisCounter(b.redis, rate.Options{
			Namespace: cfg.Counter.Namespace,
			OpTimeout: cfg.Counter.OpTimeout,
		})
	}
	guard, err := limiters.NewBruteForce(counter, limiters.BruteForceConfig{
		Prefix:       "login",
		MaxFailures:  cfg.BruteForce.MaxFailures,
		Window:       cfg.BruteForce.Window,
		LockDuration: cfg.BruteForce.LockDuration,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		hasher, err = newPasswordHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
	}
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("goGuard: prepare dummy hash: %w", err)
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		Secret:     cloneBytes(cfg.JWT.Secret),
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
		KeyID:      cfg.JWT.KeyID,
		VerifyKeys: cfg.JWT.VerifyKeys,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		counter:    counter,
		window:     limiters.NewFixedWindow(counter),
		guard:      guard,
		jwtManager: jm,
		users:      b.users,
		refresh:    b.refresh,
		hasher:     hasher,
		dummyHash:  dummyHash,
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink, logger),
		metrics:    newMetrics(cfg.Metrics),
		logger:     logger,
		now:        now,
	}
	engine.initFlows()

	b.built = true

	return engine, nil
}

// newPasswordHasher builds the configured algorithm as primary and keeps the
// other one for verifying (and upgrading) legacy hashes.
func newPasswordHasher(cfg PasswordConfig) (PasswordHasher, error) {
	argon, err := password.NewArgon2(password.Argon2Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
	if err != nil && strings.ToLower(cfg.Algorithm) != "bcrypt" {
		return nil, err
	}
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	if strings.ToLower(cfg.Algorithm) == "bcrypt" {
		if argon == nil {
			return password.NewMulti(bc)
		}
		return password.NewMulti(bc, argon)
	}
	return password.NewMulti(argon, bc)
}
