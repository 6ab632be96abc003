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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/pkg/analysis"
	"github.com/cloudact/bqoptimizer/pkg/analyzer"
	"github.com/cloudact/bqoptimizer/pkg/output"
	"github.com/cloudact/bqoptimizer/pkg/types"
)

// RunReport describes what a Run produced.
type RunReport struct {
	Tables    int
	Queries   int
	Heuristic int
	LLM       int

	// Recommendations is the ranked output
	Recommendations []types.Recommendation

	// OutputPath is empty when nothing was written
	OutputPath string
}

// Run collects (or reloads) metadata and query history for the configured
// project, generates heuristic and LLM recommendations, writes them ranked and
// prints the summary. Stage failures degrade the run; only a failure to write
// the recommendations file is returned.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	cfg := &p.cfg
	p.logger.Info("Starting optimizer run",
		zap.String("project_id", cfg.ProjectID),
		zap.Int("lookback_days", cfg.LookbackDays),
		zap.Bool("llm", cfg.Oracle != nil))

	tables := p.tables(ctx)
	queries := p.queries(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := &RunReport{Tables: len(tables), Queries: len(queries)}

	var recs []types.Recommendation
	if len(tables) > 0 {
		p.logger.Info("Performing heuristic analysis")
		heuristic := analysis.NewGenerator(cfg.Generator).Generate(tables, queries)
		heuristic = analysis.Rank(heuristic, cfg.RecommendationLimit)
		report.Heuristic = len(heuristic)
		recs = append(recs, heuristic...)
	} else {
		p.logger.Warn("Skipping heuristic analysis due to missing table metadata")
	}

	switch {
	case cfg.Oracle != nil && len(tables) > 0 && len(queries) > 0:
		llmRecs, err := p.analyze(ctx, tables, queries)
		if err != nil {
			p.logger.Warn("LLM analysis unavailable", zap.Error(err))
		}
		report.LLM = len(llmRecs)
		recs = append(recs, llmRecs...)
	case cfg.Oracle != nil:
		p.logger.Warn("Skipping LLM analysis due to missing data (requires both metadata and queries)")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Recommendations = analysis.Rank(recs, 0)
	if len(report.Recommendations) == 0 {
		p.logger.Warn("No recommendations generated")
		output.Summary(cfg.Out, nil, "")
		return report, nil
	}

	path, err := output.WriteRecommendations(cfg.Files.Recommendations, report.Recommendations, cfg.Files.Options)
	if err != nil {
		return report, fmt.Errorf("failed to save recommendations: %w", err)
	}
	report.OutputPath = path
	p.logger.Info("Saved recommendations", zap.Int("count", len(report.Recommendations)), zap.String("path", path))

	output.Summary(cfg.Out, report.Recommendations, path)
	p.logger.Info("Optimizer run completed")
	return report, nil
}

// tables collects snapshots and saves them, or loads the metadata file when
// collection is skipped or comes back empty.
func (p *Pipeline) tables(ctx context.Context) []types.TableSnapshot {
	cfg := &p.cfg
	if cfg.Stages.SkipMetadata || cfg.Metadata == nil {
		p.logger.Info("Skipping metadata collection")
		return p.loadTables()
	}

	p.logger.Info("Collecting table metadata", zap.String("project_id", cfg.ProjectID))
	tables, err := cfg.Metadata.Collect(ctx, cfg.ProjectID)
	if err != nil {
		p.logger.Warn("Table metadata is incomplete",
			zap.String("project_id", cfg.ProjectID),
			zap.Int("collected", len(tables)),
			zap.Error(err))
	}
	if len(tables) == 0 {
		p.logger.Warn("No table metadata collected, using existing metadata if available")
		return p.loadTables()
	}

	if path, err := output.WriteMetadata(cfg.Files.Metadata, tables, cfg.Files.Options); err != nil {
		p.logger.Warn("Failed to save table metadata", zap.Error(err))
	} else {
		p.logger.Info("Saved table metadata", zap.Int("tables", len(tables)), zap.String("path", path))
	}
	return tables
}

func (p *Pipeline) loadTables() []types.TableSnapshot {
	path := output.Path(p.cfg.Files.Metadata, p.cfg.Files.Options)
	if !exists(path) {
		return nil
	}
	tables, err := output.LoadMetadata(p.cfg.Files.Metadata, p.cfg.Files.Options)
	if err != nil {
		p.logger.Warn("Failed to load some existing metadata", zap.String("path", path), zap.Error(err))
	}
	p.logger.Info("Loaded table metadata", zap.Int("tables", len(tables)), zap.String("path", path))
	return tables
}

// queries collects query history and saves it, or loads the history file when
// collection is skipped.
func (p *Pipeline) queries(ctx context.Context) []types.QueryRecord {
	cfg := &p.cfg
	if cfg.Stages.SkipQueries || cfg.Queries == nil {
		p.logger.Info("Skipping query history collection")
		return p.loadQueries()
	}

	p.logger.Info("Collecting query history",
		zap.String("project_id", cfg.ProjectID),
		zap.String("region", cfg.Region))
	records, err := cfg.Queries.Collect(ctx, cfg.ProjectID, cfg.Region, cfg.LookbackDays)
	if err != nil {
		p.logger.Warn("Failed to collect query history",
			zap.String("project_id", cfg.ProjectID),
			zap.Error(err))
	}
	if len(records) == 0 {
		p.logger.Warn("No query history found, continuing with metadata-only analysis")
		return nil
	}

	if path, err := output.WriteQueries(cfg.Files.Queries, records, cfg.Files.Options); err != nil {
		p.logger.Warn("Failed to save query history", zap.Error(err))
	} else {
		p.logger.Info("Saved query history", zap.Int("queries", len(records)), zap.String("path", path))
	}
	return records
}

func (p *Pipeline) loadQueries() []types.QueryRecord {
	path := output.Path(p.cfg.Files.Queries, p.cfg.Files.Options)
	if !exists(path) {
		return nil
	}
	records, err := output.LoadQueries(p.cfg.Files.Queries, p.cfg.Files.Options)
	if err != nil {
		p.logger.Warn("Failed to load some existing query history", zap.String("path", path), zap.Error(err))
	}
	p.logger.Info("Loaded query history", zap.Int("queries", len(records)), zap.String("path", path))
	return records
}

// analyze indexes the schemas when an index is available and runs the LLM
// analyzer over the first QueryLimit queries. An index that cannot be
// prepared is dropped and analysis continues without schema context.
func (p *Pipeline) analyze(ctx context.Context, tables []types.TableSnapshot, queries []types.QueryRecord) ([]types.Recommendation, error) {
	cfg := &p.cfg

	var schemas analyzer.SchemaSource
	switch {
	case cfg.Index == nil || cfg.Stages.SkipVectorDB:
		p.logger.Info("Skipping vector database setup")
	default:
		if err := cfg.Index.Ensure(ctx); err != nil {
			p.logger.Warn("Vector database initialization failed, falling back to direct analysis", zap.Error(err))
			break
		}
		snapshots := make([]*types.TableSnapshot, len(tables))
		for i := range tables {
			snapshots[i] = &tables[i]
		}
		if _, err := cfg.Index.PutAll(ctx, snapshots); err != nil {
			p.logger.Warn("Failed to store schemas in vector database, continuing with analysis", zap.Error(err))
		}
		schemas = cfg.Index
	}

	acfg := cfg.Analyzer
	acfg.Oracle = cfg.Oracle
	acfg.Schemas = schemas
	a, err := analyzer.New(acfg)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Performing LLM-based analysis",
		zap.Int("queries", min(cfg.QueryLimit, len(queries))),
		zap.String("oracle", cfg.Oracle.Name()))
	return a.AnalyzeAll(ctx, queries, cfg.QueryLimit), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
