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

// Package llm defines the text-generation oracle used for query analysis and schema
// summaries, together with the process-wide rate limiter and token counting.
// Provider implementations live in sub-packages.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors returned by oracle implementations.
var (
	// ErrOracleUnavailable is returned when the provider cannot be reached or
	// answers with a non-success status.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrEmptyResponse is returned when the provider answered without text.
	ErrEmptyResponse = errors.New("oracle returned empty response")
)

// GenerateRequest is one prompt-to-text call.
type GenerateRequest struct {
	Prompt string

	// Model overrides the provider's configured model when set
	Model string

	// Temperature overrides the configured temperature when non-nil
	Temperature *float64

	// MaxTokens overrides the configured output budget when positive
	MaxTokens int
}

// Oracle is a text-generation service: given a prompt it returns free text.
type Oracle interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Name() string
}

// Float returns a pointer to f, for GenerateRequest.Temperature.
func Float(f float64) *float64 {
	return &f
}
