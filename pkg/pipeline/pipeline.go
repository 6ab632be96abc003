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

// Package pipeline wires the collectors, the heuristic generator, the schema
// index and the LLM analyzer into the two end-to-end flows: Run, which writes
// ranked recommendations for one project, and Suggest, which evaluates every
// table of many projects against the criteria registry and stores the rows.
package pipeline

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/pkg/analysis"
	"github.com/cloudact/bqoptimizer/pkg/analyzer"
	"github.com/cloudact/bqoptimizer/pkg/criteria"
	"github.com/cloudact/bqoptimizer/pkg/llm"
	"github.com/cloudact/bqoptimizer/pkg/output"
	"github.com/cloudact/bqoptimizer/pkg/types"
	"github.com/cloudact/bqoptimizer/pkg/warehouse"
)

// MetadataCollector reads table snapshots of one project. Snapshots collected
// before a partial failure are returned with the error.
type MetadataCollector interface {
	Collect(ctx context.Context, projectID string) ([]types.TableSnapshot, error)
}

// QueryCollector reads the recent query history of one project.
type QueryCollector interface {
	Collect(ctx context.Context, projectID, region string, lookbackDays int) ([]types.QueryRecord, error)
}

// ProjectSource lists the projects Suggest walks.
type ProjectSource interface {
	List(ctx context.Context, filter string) ([]string, error)
}

// SuggestionSink stores evaluator rows.
type SuggestionSink interface {
	EnsureTable(ctx context.Context) error
	Insert(ctx context.Context, rows []criteria.SuggestionRow) error
	TableName() string
}

// SchemaIndex stores table schemas and serves them back as prompt context.
type SchemaIndex interface {
	analyzer.SchemaSource
	Ensure(ctx context.Context) error
	PutAll(ctx context.Context, snapshots []*types.TableSnapshot) (int, error)
}

var (
	_ MetadataCollector = (*warehouse.MetadataSource)(nil)
	_ QueryCollector    = (*warehouse.QueryLogSource)(nil)
	_ ProjectSource     = (*warehouse.ProjectLister)(nil)
	_ ProjectSource     = warehouse.StaticProjects(nil)
	_ SuggestionSink    = (*warehouse.Sink)(nil)
)

// Stages switches collection stages off in favor of files from a prior run.
type Stages struct {
	SkipMetadata bool
	SkipQueries  bool
	SkipVectorDB bool
}

// Files names the files a run reads and writes.
type Files struct {
	Recommendations string // Default: query_recommendations.csv
	Metadata        string // Default: table_metadata.csv
	Queries         string // Default: query_history.csv
	Options         output.Options
}

// Config configures a Pipeline. Collectors are required by the flows that
// use them; Oracle and Index are optional.
type Config struct {
	ProjectID    string
	Region       string // Default: us
	LookbackDays int    // Default: 30

	Metadata MetadataCollector
	Queries  QueryCollector

	Generator           analysis.Config
	RecommendationLimit int // Heuristic recommendations kept. Default: 100

	// Oracle enables LLM analysis when set
	Oracle   llm.Oracle
	Analyzer analyzer.Config // Oracle and Schemas are filled in by the pipeline
	// QueryLimit caps the queries sent to the oracle. Default: 10
	QueryLimit int

	// Index supplies schema context to the analyzer when set
	Index SchemaIndex

	Stages Stages
	Files  Files

	// Projects, ProjectFilter, Sink and SuggestionsFile drive Suggest. A nil
	// Sink writes rows to SuggestionsFile, or a timestamped CSV when empty.
	Projects        ProjectSource
	ProjectFilter   string
	Sink            SuggestionSink
	SuggestionsFile string
	Concurrency     int // Projects collected at once. Default: 4

	// Out receives the run summary. Default: io.Discard
	Out io.Writer

	Now    func() time.Time
	Logger *zap.Logger
}

// Pipeline runs the optimizer flows.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a pipeline, filling defaults for zero config values.
func New(cfg Config) *Pipeline {
	if cfg.Region == "" {
		cfg.Region = warehouse.DefaultRegion
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 30
	}
	if cfg.RecommendationLimit == 0 {
		cfg.RecommendationLimit = 100
	}
	if cfg.QueryLimit == 0 {
		cfg.QueryLimit = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Files.Recommendations == "" {
		cfg.Files.Recommendations = output.DefaultRecommendationsFile
	}
	if cfg.Files.Metadata == "" {
		cfg.Files.Metadata = output.DefaultMetadataFile
	}
	if cfg.Files.Queries == "" {
		cfg.Files.Queries = output.DefaultQueriesFile
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Generator.Now == nil {
		cfg.Generator.Now = cfg.Now
	}
	if cfg.Generator.Logger == nil {
		cfg.Generator.Logger = cfg.Logger
	}
	if cfg.Analyzer.Logger == nil {
		cfg.Analyzer.Logger = cfg.Logger
	}
	return &Pipeline{cfg: cfg, logger: cfg.Logger}
}
