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

package factory

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/pkg/llm"
	"github.com/cloudact/bqoptimizer/pkg/llm/anthropic"
	"github.com/cloudact/bqoptimizer/pkg/llm/ollama"
)

// Supported provider names.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// Providers lists every provider New understands.
var Providers = []string{ProviderOllama, ProviderAnthropic}

// Config holds configuration for creating an oracle.
type Config struct {
	Provider string

	// Ollama configuration
	OllamaEndpoint string
	OllamaModel    string

	// Anthropic configuration
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	// Common settings
	MaxTokens         int
	Temperature       float64
	Timeout           int // seconds
	RequestsPerSecond float64

	// RateLimiter overrides the limiter built from RequestsPerSecond
	RateLimiter *llm.RateLimiter

	Logger *zap.Logger
}

// IsSupported reports whether name is a known provider.
func IsSupported(name string) bool {
	for _, p := range Providers {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

// New creates the oracle selected by cfg.Provider. Every client created by one
// call shares a single rate limiter.
func New(cfg Config) (llm.Oracle, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120
	}
	if cfg.RateLimiter == nil {
		rl := llm.DefaultRateLimiterConfig()
		if cfg.RequestsPerSecond > 0 {
			rl.RequestsPerSecond = cfg.RequestsPerSecond
		}
		rl.Logger = cfg.Logger
		cfg.RateLimiter = llm.NewRateLimiter(rl)
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		return createOllama(cfg), nil
	case ProviderAnthropic:
		return createAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

func createOllama(cfg Config) llm.Oracle {
	endpoint := cfg.OllamaEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OLLAMA_ENDPOINT")
	}

	return ollama.NewClient(ollama.Config{
		Endpoint:    endpoint,
		Model:       cfg.OllamaModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		RateLimiter: cfg.RateLimiter,
		Logger:      cfg.Logger.With(zap.String("provider", ProviderOllama)),
	})
}

func createAnthropic(cfg Config) (llm.Oracle, error) {
	client, err := anthropic.NewClient(anthropic.Config{
		APIKey:      cfg.AnthropicAPIKey,
		Model:       cfg.AnthropicModel,
		BaseURL:     cfg.AnthropicBaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		RateLimiter: cfg.RateLimiter,
		Logger:      cfg.Logger.With(zap.String("provider", ProviderAnthropic)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic oracle: %w", err)
	}
	return client, nil
}
