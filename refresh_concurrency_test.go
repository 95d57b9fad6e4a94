package goGuard

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRefreshConcurrentRotationSingleWinner(t *testing.T) {
	env := newTestEnv(t, testConfig())
	u := env.register(t, "alice")
	pair := env.login(t, "alice")

	const workers = 32
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		winners int
		other   []error
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := env.engine.RotateRefresh(context.Background(), pair.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrRevokedOrUnknown):
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", winners)
	}
	if len(other) != 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if live := env.store.liveTokens(u.ID); len(live) != 1 {
		t.Fatalf("expected one live refresh token after the race, got %d", len(live))
	}
}

func TestRefreshConcurrentDistinctUsers(t *testing.T) {
	env := newTestEnv(t, testConfig())
	names := []string{"alice", "bob", "carol", "dave"}
	pairs := make([]*TokenPair, len(names))
	for i, name := range names {
		env.register(t, name)
		pairs[i] = env.login(t, name)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(pairs))
	for _, p := range pairs {
		wg.Add(1)
		go func(p *TokenPair) {
			defer wg.Done()
			if _, err := env.engine.RotateRefresh(context.Background(), p.RefreshToken); err != nil {
				errs <- err
			}
		}(p)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("independent rotations must all succeed: %v", err)
	}
}
