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

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudact/bqoptimizer/pkg/criteria"
	"github.com/cloudact/bqoptimizer/pkg/output"
)

// ErrNoProjects is returned when Suggest has nothing to walk.
var ErrNoProjects = errors.New("no projects to analyze")

// SuggestReport describes what a Suggest pass produced.
type SuggestReport struct {
	Projects int
	Rows     []criteria.SuggestionRow

	// Inserted is set when rows reached the sink
	Inserted bool

	// CSVPath is set when rows were written to a file instead
	CSVPath string

	// Failed aggregates the per-project collection failures
	Failed error
}

// Suggest evaluates every table of every listed project against the criteria
// registry and stores one row per table. The sink must be ensured first and
// its failure is fatal; a failed insert falls back to a CSV file.
func (p *Pipeline) Suggest(ctx context.Context) (*SuggestReport, error) {
	cfg := &p.cfg
	if cfg.Metadata == nil {
		return nil, errors.New("suggest requires a metadata collector")
	}
	if cfg.Projects == nil {
		return nil, ErrNoProjects
	}
	p.logger.Info("Starting optimization suggestion analysis")

	projects, err := cfg.Projects.List(ctx, cfg.ProjectFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if len(projects) == 0 {
		return nil, ErrNoProjects
	}

	if cfg.Sink != nil && cfg.SuggestionsFile == "" {
		if err := cfg.Sink.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare suggestions table %s: %w", cfg.Sink.TableName(), err)
		}
	}

	rows, failed := p.collectRows(ctx, projects)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := &SuggestReport{Projects: len(projects), Rows: rows, Failed: failed}
	if len(rows) == 0 {
		p.logger.Warn("No table data collected, no rows to store")
		return report, nil
	}

	if cfg.Sink != nil && cfg.SuggestionsFile == "" {
		p.logger.Info("Inserting suggestion rows",
			zap.Int("rows", len(rows)),
			zap.String("table_id", cfg.Sink.TableName()))
		err := cfg.Sink.Insert(ctx, rows)
		if err == nil {
			report.Inserted = true
			return report, nil
		}
		p.logger.Warn("Failed to insert suggestion rows, saving to CSV instead", zap.Error(err))
	}

	path := cfg.SuggestionsFile
	if path == "" {
		path = output.SuggestionsFileName(cfg.Now())
	}
	written, err := output.WriteSuggestions(path, rows, output.Options{Format: output.FormatCSV})
	if err != nil {
		return report, fmt.Errorf("failed to save suggestions: %w", err)
	}
	report.CSVPath = written
	p.logger.Info("Saved suggestion rows", zap.Int("rows", len(rows)), zap.String("path", written))
	return report, nil
}

// collectRows evaluates each project with bounded concurrency. Rows keep
// project order; a failed project contributes whatever was collected.
func (p *Pipeline) collectRows(ctx context.Context, projects []string) ([]criteria.SuggestionRow, error) {
	perProject := make([][]criteria.SuggestionRow, len(projects))
	errs := make([]error, len(projects))
	now := p.cfg.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, projectID := range projects {
		i, projectID := i, projectID
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			p.logger.Info("Processing project", zap.String("project_id", projectID))
			tables, err := p.cfg.Metadata.Collect(gctx, projectID)
			if err != nil {
				p.logger.Error("Error processing project, continuing with next",
					zap.String("project_id", projectID),
					zap.Error(err))
				errs[i] = fmt.Errorf("project %s: %w", projectID, err)
			}
			rows := make([]criteria.SuggestionRow, 0, len(tables))
			for j := range tables {
				rows = append(rows, criteria.NewSuggestionRow(&tables[j], now))
			}
			perProject[i] = rows
			p.logger.Info("Processed project tables",
				zap.String("project_id", projectID),
				zap.Int("tables", len(rows)))
			return nil
		})
	}
	_ = g.Wait()

	var (
		rows   []criteria.SuggestionRow
		result *multierror.Error
	)
	for i := range projects {
		rows = append(rows, perProject[i]...)
		if errs[i] != nil {
			result = multierror.Append(result, errs[i])
		}
	}
	return rows, result.ErrorOrNil()
}
