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
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimiterConfig configures the oracle rate limiter.
type RateLimiterConfig struct {
	// Enabled enables rate limiting
	Enabled bool

	// RequestsPerSecond is the sustained request rate shared by every caller.
	// Default: 2 (a locally hosted model serves one generation at a time)
	RequestsPerSecond float64

	// BurstCapacity is the maximum burst of requests allowed.
	// Default: 2
	BurstCapacity int

	// MinDelay is the minimum spacing between requests.
	MinDelay time.Duration

	// MaxRetries is the number of retries for throttling errors (HTTP 429).
	// Default: 0
	MaxRetries int

	// RetryBackoff is the initial backoff for retries (doubles each retry).
	// Default: 1s
	RetryBackoff time.Duration

	// Logger for rate limiter events
	Logger *zap.Logger
}

// DefaultRateLimiterConfig returns defaults suited to a single local model server.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Enabled:           true,
		RequestsPerSecond: 2.0,
		BurstCapacity:     2,
		RetryBackoff:      time.Second,
		Logger:            zap.NewNop(),
	}
}

// RateLimiterMetrics tracks rate limiter activity.
type RateLimiterMetrics struct {
	TotalRequests     int64
	ThrottledRequests int64
	DroppedRequests   int64
	LastThrottleTime  time.Time
}

// ErrThrottled is returned when throttling persists after every retry.
var ErrThrottled = errors.New("oracle request throttled")

// RateLimiter is a token bucket shared by every oracle call in the process.
type RateLimiter struct {
	config RateLimiterConfig

	mu          sync.Mutex
	tokens      float64
	maxTokens   float64
	refillRate  float64
	lastRefill  time.Time
	lastRequest time.Time

	metricsMu sync.Mutex
	metrics   RateLimiterMetrics
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 2.0
	}
	if config.BurstCapacity <= 0 {
		config.BurstCapacity = 1
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Second
	}

	return &RateLimiter{
		config:     config,
		tokens:     float64(config.BurstCapacity),
		maxTokens:  float64(config.BurstCapacity),
		refillRate: config.RequestsPerSecond,
		lastRefill: time.Now(),
	}
}

// Do waits for a token, then runs call, retrying throttling errors with
// exponential backoff. A nil limiter runs call directly.
func (rl *RateLimiter) Do(ctx context.Context, call func(context.Context) error) error {
	if rl == nil || !rl.config.Enabled {
		return call(ctx)
	}

	backoff := rl.config.RetryBackoff
	for attempt := 0; attempt <= rl.config.MaxRetries; attempt++ {
		if err := rl.wait(ctx); err != nil {
			rl.record(func(m *RateLimiterMetrics) { m.DroppedRequests++ })
			return err
		}

		err := call(ctx)
		rl.record(func(m *RateLimiterMetrics) { m.TotalRequests++ })
		if err == nil || !isThrottlingError(err) {
			return err
		}

		rl.record(func(m *RateLimiterMetrics) {
			m.ThrottledRequests++
			m.LastThrottleTime = time.Now()
		})
		rl.config.Logger.Warn("Oracle request throttled",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", rl.config.MaxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		if attempt == rl.config.MaxRetries {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrThrottled, rl.config.MaxRetries+1)
}

// wait blocks until a token is available and the minimum spacing has elapsed.
func (rl *RateLimiter) wait(ctx context.Context) error {
	for {
		delay := rl.reserve()
		if delay == 0 {
			return nil
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reserve takes a token and returns zero, or returns how long to wait before
// trying again.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.config.MinDelay > 0 && !rl.lastRequest.IsZero() {
		if gap := rl.lastRequest.Add(rl.config.MinDelay).Sub(now); gap > 0 {
			return gap
		}
	}
	if rl.tokens < 1.0 {
		d := time.Duration((1.0 - rl.tokens) / rl.refillRate * float64(time.Second))
		if d < time.Millisecond {
			d = time.Millisecond
		}
		return d
	}

	rl.tokens -= 1.0
	rl.lastRequest = now
	return 0
}

func (rl *RateLimiter) record(update func(*RateLimiterMetrics)) {
	rl.metricsMu.Lock()
	defer rl.metricsMu.Unlock()
	update(&rl.metrics)
}

// GetMetrics returns current rate limiter metrics.
func (rl *RateLimiter) GetMetrics() RateLimiterMetrics {
	rl.metricsMu.Lock()
	defer rl.metricsMu.Unlock()
	return rl.metrics
}

// isThrottlingError reports whether err looks like an HTTP 429 or a provider
// throttling message.
func isThrottlingError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "too many requests", "rate limit", "throttl", "overloaded"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
