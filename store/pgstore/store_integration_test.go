//go:build integration

package pgstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("PGSTORE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PGSTORE_TEST_DATABASE_URL is required for integration tests")
	}
	s, err := Open(context.Background(), dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = s.db.Exec("TRUNCATE TABLE refresh_tokens, users RESTART IDENTITY CASCADE")
		_ = s.Close()
	})
	return s
}

func TestIntegrationMigrateIsIdempotent(t *testing.T) {
	s := newIntegrationStore(t)
	require.NoError(t, Migrate(context.Background(), s.db))
}

func TestIntegrationUsersAndRotation(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "u_"+uuid.NewString()[:8], "hash", goGuard.RoleUser)
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, u.Username, "hash", goGuard.RoleUser)
	assert.ErrorIs(t, err, goGuard.ErrUsernameTaken)

	require.NoError(t, s.SetRole(ctx, u.Username, goGuard.RoleAdmin))
	promoted, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, goGuard.RoleAdmin, promoted.Role)

	old := goGuard.RefreshTokenRecord{JTI: uuid.NewString(), UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateRefreshToken(ctx, old))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := goGuard.RefreshTokenRecord{JTI: uuid.NewString(), UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}
			errs <- s.RotateRefreshToken(ctx, old.JTI, next)
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, goGuard.ErrRevokedOrUnknown)
		}
	}
	assert.Equal(t, 1, wins)

	n, err := s.RevokeAllForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
