package main

import (
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[i] = time.Duration(i+1) * time.Millisecond
	}
	assert.Equal(t, time.Millisecond, percentile(samples, 0))
	assert.Equal(t, 50*time.Millisecond, percentile(samples, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(samples, 99))
	assert.Equal(t, 100*time.Millisecond, percentile(samples, 100))
	assert.Zero(t, percentile(nil, 50))
}

func TestComputeStatsSorts(t *testing.T) {
	s := computeStats(time.Second, []time.Duration{3, 1, 2}, 1)
	assert.Equal(t, 3, s.ops)
	assert.Equal(t, int64(1), s.failures)
	assert.Equal(t, time.Duration(2), s.p50)
	assert.InDelta(t, 3.0, s.opsPerS, 0.001)
}

func TestRunPhaseRunsEveryOp(t *testing.T) {
	var calls atomic.Int64
	s := runPhase(500, 8, func(_ *rand.Rand, i int) error {
		calls.Add(1)
		if i%100 == 0 {
			return assert.AnError
		}
		return nil
	})
	assert.Equal(t, int64(500), calls.Load())
	assert.Equal(t, 500, s.ops)
	assert.Equal(t, int64(5), s.failures)
}

func TestRunInProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("seeds users with bcrypt")
	}
	assert.NoError(t, run(4, 4, 40, "", ":memory:"))
}
