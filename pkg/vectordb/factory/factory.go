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

// Package factory opens the configured vector store backend.
package factory

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/pkg/vectordb"
	"github.com/cloudact/bqoptimizer/pkg/vectordb/qdrant"
	"github.com/cloudact/bqoptimizer/pkg/vectordb/sqlite"
)

// Supported backends.
const (
	BackendQdrant = "qdrant"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Backends lists every backend Open understands.
var Backends = []string{BackendQdrant, BackendSQLite, BackendMemory}

// Config selects and configures a backend.
type Config struct {
	Backend        string
	Endpoint       string
	APIKey         string
	Collection     string
	SQLitePath     string
	TimeoutSeconds int
	Logger         *zap.Logger
}

// IsSupported reports whether name is a known backend.
func IsSupported(name string) bool {
	for _, b := range Backends {
		if strings.EqualFold(b, name) {
			return true
		}
	}
	return false
}

// Open returns the store for cfg.Backend.
func Open(cfg Config) (vectordb.Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "bigquery_schemas"
	}
	logger := cfg.Logger.With(zap.String("backend", strings.ToLower(cfg.Backend)))

	switch strings.ToLower(cfg.Backend) {
	case "", BackendQdrant:
		return qdrant.NewClient(qdrant.Config{
			Endpoint:   cfg.Endpoint,
			Collection: cfg.Collection,
			APIKey:     cfg.APIKey,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
			Logger:     logger,
		}), nil
	case BackendSQLite:
		store, err := sqlite.NewStore(sqlite.Config{
			Path:       cfg.SQLitePath,
			Collection: cfg.Collection,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite vector store: %w", err)
		}
		return store, nil
	case BackendMemory:
		return vectordb.NewMemoryStore(cfg.Collection), nil
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.Backend)
	}
}
