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

// Package analysis turns collected table snapshots and query history into ranked
// optimization recommendations.
package analysis

import (
	"time"

	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

// MinRowsForAnalysis is the row count under which small tables are skipped.
const MinRowsForAnalysis = 1000

// Config configures the heuristic generator.
type Config struct {
	// SizeThresholdGB skips tables below this size that also have fewer than
	// MinRowsForAnalysis rows (default: 0.01)
	SizeThresholdGB float64

	// ScanRatioThreshold is the minimum average scan ratio for query-shape
	// recommendations (default: 0.5)
	ScanRatioThreshold float64

	// MinQueryCount is the minimum reference count for query-driven strategies
	// (query shape, materialized view). Zero disables the check.
	MinQueryCount int

	// Aggregate controls reference counting
	Aggregate AggregateOptions

	// Now returns the evaluation instant (default: time.Now)
	Now func() time.Time

	Logger *zap.Logger
}

// Generator produces heuristic recommendations for a corpus.
type Generator struct {
	cfg    Config
	logger *zap.Logger
}

// NewGenerator creates a generator, filling defaults for zero config values.
func NewGenerator(cfg Config) *Generator {
	if cfg.SizeThresholdGB == 0 {
		cfg.SizeThresholdGB = 0.01
	}
	if cfg.ScanRatioThreshold == 0 {
		cfg.ScanRatioThreshold = 0.5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, logger: logger}
}

// Generate evaluates every strategy for every eligible table. Query history is
// aggregated first because the strategies read cross-table totals. Output is in
// table order, then strategy order; use Rank to order it.
func (g *Generator) Generate(tables []types.TableSnapshot, queries []types.QueryRecord) []types.Recommendation {
	patterns := Aggregate(queries, g.cfg.Aggregate)
	if patterns.Duplicates > 0 {
		g.logger.Warn("Query reference lists contain duplicate tables",
			zap.Int("duplicates", patterns.Duplicates),
			zap.Bool("count_duplicates", g.cfg.Aggregate.CountDuplicates))
	}
	return g.GenerateWithPatterns(tables, patterns)
}

// GenerateWithPatterns is Generate with precomputed query patterns.
func (g *Generator) GenerateWithPatterns(tables []types.TableSnapshot, patterns *QueryPatterns) []types.Recommendation {
	now := g.cfg.Now()

	// Last snapshot per id wins; first-seen order is kept.
	order := make([]string, 0, len(tables))
	byID := make(map[string]*types.TableSnapshot, len(tables))
	for i := range tables {
		id := tables[i].ID.String()
		if _, ok := byID[id]; !ok {
			order = append(order, id)
		}
		byID[id] = &tables[i]
	}

	var recs []types.Recommendation
	for _, id := range order {
		recs = append(recs, g.forTable(byID[id], patterns, now)...)
	}

	g.logger.Info("Generated heuristic recommendations",
		zap.Int("tables", len(order)),
		zap.Int("recommendations", len(recs)))
	return recs
}

func (g *Generator) forTable(snap *types.TableSnapshot, patterns *QueryPatterns, now time.Time) []types.Recommendation {
	id := snap.ID.String()
	if snap.SizeGB() < g.cfg.SizeThresholdGB && snap.RowCount < MinRowsForAnalysis {
		g.logger.Debug("Skipping small table", zap.String("table_id", id))
		return nil
	}
	if len(snap.Schema) == 0 {
		g.logger.Warn("Skipping table without schema", zap.String("table_id", id))
		return nil
	}

	days, _ := snap.DaysSinceModified(now)
	tc := &tableContext{
		snap:       snap,
		id:         id,
		sizeGB:     snap.SizeGB(),
		refs:       patterns.References(id),
		bytes:      patterns.Bytes(id),
		daysIdle:   days,
		fields:     snap.Schema,
		partitions: PartitionCandidates(snap.Schema),
		clusters:   ClusterCandidates(snap.Schema),
	}

	var recs []types.Recommendation
	add := func(r *types.Recommendation) {
		if r != nil {
			r.Source = types.SourceHeuristic
			recs = append(recs, *r)
		}
	}

	add(partitionStrategy(tc))
	add(clusterStrategy(tc))
	add(combinedStrategy(tc))
	if tc.refs >= g.cfg.MinQueryCount {
		add(queryShapeStrategy(tc, g.cfg.ScanRatioThreshold))
		add(materializedViewStrategy(tc))
	}
	for _, r := range columnStrategies(tc) {
		add(&r)
	}
	add(lifecycleStrategy(tc))
	return recs
}
