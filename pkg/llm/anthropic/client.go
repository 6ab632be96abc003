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

// Package anthropic implements the oracle with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/pkg/llm"
)

const (
	// DefaultModel is the default Claude model
	DefaultModel = "claude-sonnet-4-5-20250929"
	// DefaultMaxTokens is the default maximum tokens per request
	DefaultMaxTokens = 4096
	// DefaultTemperature is the default temperature
	DefaultTemperature = 0.2
	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 60 * time.Second
)

// ErrMissingAPIKey is returned when no API key is configured or exported.
var ErrMissingAPIKey = errors.New("anthropic API key is required (set llm.anthropic_api_key or ANTHROPIC_API_KEY)")

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey      string // Default: $ANTHROPIC_API_KEY
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// BaseURL overrides the API endpoint
	BaseURL string

	RateLimiter *llm.RateLimiter
	Logger      *zap.Logger
}

// Client implements llm.Oracle with the Anthropic SDK.
type Client struct {
	client      sdk.Client
	model       string
	maxTokens   int64
	temperature float64
	rateLimiter *llm.RateLimiter
	logger      *zap.Logger
}

// NewClient creates a new Anthropic client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		// Throttling retries are handled by the shared rate limiter.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:      sdk.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		rateLimiter: cfg.RateLimiter,
		logger:      cfg.Logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "anthropic"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Generate sends the prompt as a single user message and returns the concatenated
// text blocks of the reply.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))},
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(c.temperature),
	}
	if req.Model != "" {
		params.Model = sdk.Model(req.Model)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}

	var message *sdk.Message
	err := c.rateLimiter.Do(ctx, func(ctx context.Context) error {
		var err error
		message, err = c.client.Messages.New(ctx, params)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: anthropic messages call failed: %v", llm.ErrOracleUnavailable, err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	c.logger.Debug("Anthropic generation finished",
		zap.String("model", string(message.Model)),
		zap.Int64("input_tokens", message.Usage.InputTokens),
		zap.Int64("output_tokens", message.Usage.OutputTokens))

	if strings.TrimSpace(b.String()) == "" {
		return "", llm.ErrEmptyResponse
	}
	return b.String(), nil
}

// Ensure Client implements the Oracle interface.
var _ llm.Oracle = (*Client)(nil)
