package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/audit/kafkasink"
	"github.com/MrEthical07/goGuard/internal/config"
	"github.com/MrEthical07/goGuard/store/gormstore"
	"github.com/MrEthical07/goGuard/store/pgstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// backend is what both persistent stores provide.
type backend interface {
	goGuard.UserStore
	goGuard.RefreshTokenStore
	SetRole(ctx context.Context, username string, role goGuard.Role) error
	Close() error
}

// app owns every long-lived resource. close releases them in reverse order
// of construction.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	mr     *miniredis.Miniredis
	rdb    *redis.Client
	store  backend
	kafka  *kafkasink.Sink
	engine *goGuard.Engine
}

func openStore(ctx context.Context, cfg config.Config) (backend, error) {
	if cfg.StoreBackend == "pgx" {
		s, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := gormstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openRedis(cfg config.Config, logger *slog.Logger) (*redis.Client, *miniredis.Miniredis, error) {
	if cfg.RedisURL == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		logger.Warn("REDIS_URL not set, using embedded miniredis; counters are not shared between processes", "addr", mr.Addr())
		return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil, nil
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.rdb, a.mr, err = openRedis(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		// Rate limiting may fail open, so a down redis is not fatal.
		logger.Warn("redis ping failed", "error", err)
	}

	a.store, err = openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	b := goGuard.New().
		WithConfig(cfg.Engine()).
		WithRedis(a.rdb).
		WithStore(a.store).
		WithLogger(logger)

	if cfg.AuditEnabled {
		sink, err := a.auditSink()
		if err != nil {
			return nil, err
		}
		b = b.WithAuditSink(sink)
	}

	a.engine, err = b.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	r := a.engine.SecurityReport()
	logger.Info("security posture",
		"alg", r.SigningAlgorithm,
		"access_ttl", r.AccessTTL,
		"refresh_ttl", r.RefreshTTL,
		"password", r.Password.Algorithm,
		"rate_limiting", r.RateLimitingActive,
		"fail_open", r.RateLimitFailOpen,
		"brute_force", r.BruteForceActive,
		"family_revocation", r.FamilyRevocationActive,
		"audit", r.AuditActive,
	)
	return a, nil
}

func (a *app) auditSink() (goGuard.AuditSink, error) {
	if len(a.cfg.KafkaBrokers) == 0 {
		return goGuard.NewLogSink(a.logger.With("component", "audit")), nil
	}
	sink, err := kafkasink.New(a.cfg.KafkaBrokers, a.cfg.KafkaAuditTopic, kafkasink.Options{Logger: a.logger})
	if err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}
	a.kafka = sink
	return sink, nil
}

func (a *app) close() {
	var errs []error
	if a.engine != nil {
		a.engine.Close()
	}
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.mr != nil {
		a.mr.Close()
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("shutdown", "error", err)
	}
}
