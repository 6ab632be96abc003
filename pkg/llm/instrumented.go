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
	"sync"
	"time"

	"go.uber.org/zap"
)

// OracleStats aggregates the calls made through an InstrumentedOracle.
type OracleStats struct {
	Calls        int
	Errors       int
	PromptTokens int
	OutputTokens int
	Latency      time.Duration
}

// InstrumentedOracle wraps an Oracle and records latency, token usage and
// failures for every Generate call.
type InstrumentedOracle struct {
	oracle  Oracle
	counter *TokenCounter
	logger  *zap.Logger

	mu    sync.Mutex
	stats OracleStats
}

var _ Oracle = (*InstrumentedOracle)(nil)

// NewInstrumentedOracle wraps oracle. A nil logger discards the per-call logs.
func NewInstrumentedOracle(oracle Oracle, logger *zap.Logger) *InstrumentedOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedOracle{
		oracle:  oracle,
		counter: GetTokenCounter(),
		logger:  logger.With(zap.String("provider", oracle.Name())),
	}
}

// Name returns the wrapped oracle's name.
func (o *InstrumentedOracle) Name() string {
	return o.oracle.Name()
}

// Unwrap returns the wrapped oracle.
func (o *InstrumentedOracle) Unwrap() Oracle {
	return o.oracle
}

// Generate forwards to the wrapped oracle.
func (o *InstrumentedOracle) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	start := time.Now()
	promptTokens := o.counter.CountTokens(req.Prompt)

	text, err := o.oracle.Generate(ctx, req)
	elapsed := time.Since(start)

	o.mu.Lock()
	o.stats.Calls++
	o.stats.PromptTokens += promptTokens
	o.stats.Latency += elapsed
	if err != nil {
		o.stats.Errors++
	}
	o.mu.Unlock()

	if err != nil {
		o.logger.Debug("Oracle call failed",
			zap.Int("prompt_tokens", promptTokens),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return "", err
	}

	outputTokens := o.counter.CountTokens(text)
	o.mu.Lock()
	o.stats.OutputTokens += outputTokens
	o.mu.Unlock()

	o.logger.Debug("Oracle call completed",
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("output_tokens", outputTokens),
		zap.Duration("duration", elapsed))
	return text, nil
}

// Stats returns a snapshot of the totals so far.
func (o *InstrumentedOracle) Stats() OracleStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}
