// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewRateLimiter(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Logger = zaptest.NewLogger(t)

	rl := NewRateLimiter(config)
	require.NotNil(t, rl)
	assert.Equal(t, config.RequestsPerSecond, rl.refillRate)
	assert.Equal(t, float64(config.BurstCapacity), rl.maxTokens)
	assert.Equal(t, float64(config.BurstCapacity), rl.tokens)
}

func TestRateLimiter_Do_Success(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Logger = zaptest.NewLogger(t)
	config.RequestsPerSecond = 10

	rl := NewRateLimiter(config)

	calls := 0
	err := rl.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	metrics := rl.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRequests)
	assert.Equal(t, int64(0), metrics.ThrottledRequests)
}

func TestRateLimiter_Do_ThrottlingRetry(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Logger = zaptest.NewLogger(t)
	config.RequestsPerSecond = 100
	config.MaxRetries = 3
	config.RetryBackoff = 5 * time.Millisecond

	rl := NewRateLimiter(config)

	calls := 0
	err := rl.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("ollama returned status 429: Too Many Requests")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(2), rl.GetMetrics().ThrottledRequests)
}

func TestRateLimiter_Do_ThrottlingExhausted(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.RequestsPerSecond = 100
	config.MaxRetries = 1
	config.RetryBackoff = time.Millisecond

	rl := NewRateLimiter(config)

	calls := 0
	err := rl.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("rate limit exceeded")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, 2, calls)
}

func TestRateLimiter_Do_NonRetryableError(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())

	calls := 0
	boom := errors.New("connection refused")
	err := rl.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRateLimiter_Disabled(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Enabled = false
	rl := NewRateLimiter(config)

	var calls atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, rl.Do(context.Background(), func(ctx context.Context) error {
			calls.Add(1)
			return nil
		}))
	}
	assert.Equal(t, int32(20), calls.Load())
	assert.Zero(t, rl.GetMetrics().TotalRequests)

	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Do(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestRateLimiter_EnforcesRate(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.RequestsPerSecond = 20
	config.BurstCapacity = 1

	rl := NewRateLimiter(config)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rl.Do(context.Background(), func(ctx context.Context) error { return nil })
		}()
	}
	wg.Wait()

	// one immediate token, then four refills at 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, int64(5), rl.GetMetrics().TotalRequests)
}

func TestRateLimiter_ContextCancelled(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.RequestsPerSecond = 0.1
	config.BurstCapacity = 1

	rl := NewRateLimiter(config)
	require.NoError(t, rl.Do(context.Background(), func(ctx context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), rl.GetMetrics().DroppedRequests)
}

func TestIsThrottlingError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("status 429"), true},
		{errors.New("ThrottlingException: slow down"), true},
		{errors.New("overloaded_error"), true},
		{errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isThrottlingError(tt.err), "%v", tt.err)
	}
}
