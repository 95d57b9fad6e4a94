package main

import (
	"context"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/config"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	cfg, err := config.FromEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

func TestAppWithEmbeddedRedisAndSQLite(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"DATABASE_URL":    ":memory:",
		"PASSWORD_HASHER": "bcrypt",
		"AUDIT_ENABLED":   "false",
	})
	ctx := context.Background()

	a, err := newApp(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(a.close)

	require.NotNil(t, a.mr, "empty REDIS_URL should start miniredis")
	require.NoError(t, a.engine.Health(ctx))

	_, err = a.engine.Register(ctx, "alice", "alice12345")
	require.NoError(t, err)
	require.NoError(t, a.store.SetRole(ctx, "alice", goGuard.RoleAdmin))

	pair, err := a.engine.Login(ctx, "alice", "alice12345")
	require.NoError(t, err)
	u, err := a.engine.ResolveCurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, goGuard.RoleAdmin, u.Role)
}

func TestAppRejectsBadRedisURL(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"DATABASE_URL": ":memory:",
		"REDIS_URL":    "not a url",
	})
	_, err := newApp(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestAuditSinkFallsBackToLogger(t *testing.T) {
	a := &app{cfg: testConfig(t, map[string]string{}), logger: logging.Discard()}
	sink, err := a.auditSink()
	require.NoError(t, err)
	assert.IsType(t, &goGuard.LogSink{}, sink)
	assert.Nil(t, a.kafka)

	a.cfg.KafkaBrokers = []string{"localhost:9092"}
	_, err = a.auditSink()
	require.NoError(t, err)
	require.NotNil(t, a.kafka)
	assert.NoError(t, a.kafka.Close())
}

func TestPromoteUsage(t *testing.T) {
	cfg := testConfig(t, map[string]string{"DATABASE_URL": ":memory:"})
	assert.Error(t, promote(context.Background(), cfg, logging.Discard(), nil))
}
