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
)

func TestOpen(t *testing.T) {
	t.Setenv("BQOPT_DB_KEY", "")

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "default qdrant", config: Config{}},
		{name: "qdrant", config: Config{Backend: "Qdrant", Endpoint: "http://q:6333"}},
		{name: "sqlite", config: Config{Backend: "sqlite", SQLitePath: ":memory:"}},
		{name: "memory", config: Config{Backend: "memory", Collection: "c"}},
		{name: "unknown", config: Config{Backend: "pinecone"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			if tt.config.Collection != "" {
				assert.Equal(t, tt.config.Collection, store.Collection())
			} else {
				assert.Equal(t, "bigquery_schemas", store.Collection())
			}
		})
	}
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("sqlite"))
	assert.True(t, IsSupported("MEMORY"))
	assert.False(t, IsSupported("chroma"))
}
