// Command goguard-loadtest drives token resolution, refresh rotation and
// rate-limit checks against an in-process engine and prints latency
// percentiles per phase.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/password"
	"github.com/MrEthical07/goGuard/store/gormstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type userState struct {
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 200, "number of users to register and log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		databaseURL = flag.String("database-url", ":memory:", "gorm store url")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	if err := run(*users, *concurrency, *ops, *redisAddr, *databaseURL); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(users, concurrency, ops int, redisAddr, databaseURL string) error {
	ctx := context.Background()

	if redisAddr == "" {
		redisAddr = os.Getenv("REDIS_ADDR")
	}
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		redisAddr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", redisAddr)
	} else {
		fmt.Printf("using redis at %s\n", redisAddr)
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()

	store, err := gormstore.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	hasher, err := password.NewBcrypt(4)
	if err != nil {
		return err
	}

	cfg := goGuard.DefaultConfig()
	cfg.JWT.Secret = []byte("goguard-loadtest-secret")
	cfg.Account.PasswordMaxLength = 72
	// Each phase measures the engine, not the limiter rejecting it.
	cfg.RateLimit.Login = goGuard.RateLimitRule{Limit: 1 << 30, Window: time.Hour}
	cfg.RateLimit.Register = goGuard.RateLimitRule{Limit: 1 << 30, Window: time.Hour}
	cfg.RateLimit.Refresh = goGuard.RateLimitRule{Limit: 1 << 30, Window: time.Hour}
	cfg.RateLimit.API = goGuard.RateLimitRule{Limit: 1 << 30, Window: time.Hour}

	engine, err := goGuard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(store).
		WithPasswordHasher(hasher).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	states := make([]userState, users)
	fmt.Printf("seeding %d users...\n", users)
	startSeed := time.Now()
	for i := range states {
		name := "load" + strconv.Itoa(i)
		if _, err := engine.Register(ctx, name, "load-password"); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
		pair, err := engine.Login(ctx, name, "load-password")
		if err != nil {
			return fmt.Errorf("login %s: %w", name, err)
		}
		states[i].access = pair.AccessToken
		states[i].refresh = pair.RefreshToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolve := runPhase(ops, concurrency, func(r *rand.Rand, _ int) error {
		_, err := engine.ResolveCurrentUser(ctx, states[r.Intn(len(states))].access)
		return err
	})
	refresh := runPhase(ops, concurrency, func(r *rand.Rand, _ int) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.RotateRefresh(ctx, s.refresh)
		if err != nil {
			return err
		}
		s.refresh = pair.RefreshToken
		return nil
	})
	limit := runPhase(ops, concurrency, func(_ *rand.Rand, i int) error {
		return engine.CheckRateLimit(ctx, goGuard.ScopeAPI, "user:"+strconv.Itoa(i%users))
	})

	fmt.Println("---- results ----")
	printStats("resolve", resolve)
	printStats("refresh", refresh)
	printStats("rate-limit", limit)
	return nil
}

// runPhase spreads ops calls of op across concurrency workers.
func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}
