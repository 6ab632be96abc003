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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudact/bqoptimizer/pkg/llm/anthropic"
	"github.com/cloudact/bqoptimizer/pkg/llm/ollama"
)

func TestNew(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OLLAMA_ENDPOINT", "")

	tests := []struct {
		name     string
		config   Config
		wantName string
		wantErr  bool
	}{
		{name: "default is ollama", config: Config{}, wantName: "ollama"},
		{name: "ollama explicit", config: Config{Provider: "Ollama", OllamaModel: "mistral"}, wantName: "ollama"},
		{name: "anthropic with key", config: Config{Provider: "anthropic", AnthropicAPIKey: "k"}, wantName: "anthropic"},
		{name: "anthropic without key", config: Config{Provider: "anthropic"}, wantErr: true},
		{name: "unknown provider", config: Config{Provider: "openai"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, oracle.Name())
		})
	}
}

func TestNew_PassesModel(t *testing.T) {
	oracle, err := New(Config{Provider: ProviderOllama, OllamaModel: "qwen2.5"})
	require.NoError(t, err)
	client, ok := oracle.(*ollama.Client)
	require.True(t, ok)
	assert.Equal(t, "qwen2.5", client.Model())

	oracle, err = New(Config{Provider: ProviderAnthropic, AnthropicAPIKey: "k", AnthropicModel: "claude-haiku-4-5"})
	require.NoError(t, err)
	ac, ok := oracle.(*anthropic.Client)
	require.True(t, ok)
	assert.Equal(t, "claude-haiku-4-5", ac.Model())
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("ollama"))
	assert.True(t, IsSupported("ANTHROPIC"))
	assert.False(t, IsSupported("bedrock"))
	assert.False(t, IsSupported(""))
}
