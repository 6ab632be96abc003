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

package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

var fixedNow = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestGenerator(cfg Config) *Generator {
	cfg.Now = func() time.Time { return fixedNow }
	return NewGenerator(cfg)
}

func eventsSchema() []types.SchemaField {
	return []types.SchemaField{
		{Name: "created_at", Type: "TIMESTAMP", Mode: "NULLABLE"},
		{Name: "customer_id", Type: "STRING", Mode: "REQUIRED"},
		{Name: "region", Type: "STRING"},
		{Name: "status", Type: "STRING"},
		{Name: "amount", Type: "FLOAT"},
		{Name: "event_time", Type: "INTEGER"},
	}
}

func typesOf(recs []types.Recommendation) []types.RecommendationType {
	out := make([]types.RecommendationType, len(recs))
	for i, r := range recs {
		out[i] = r.Type
	}
	return out
}

func TestGenerate_LargeUnpartitionedTable(t *testing.T) {
	snap := types.TableSnapshot{
		ID:           types.TableID{Project: "p", Dataset: "d", Table: "events"},
		SizeBytes:    15 * types.BytesPerGB,
		RowCount:     1_000_000,
		LastModified: fixedNow.Add(-200 * 24 * time.Hour),
		Schema:       eventsSchema(),
	}

	recs := newTestGenerator(Config{}).Generate([]types.TableSnapshot{snap}, nil)
	assert.Equal(t, []types.RecommendationType{
		types.TypePartition,
		types.TypePartitionAndCluster,
		types.TypeMaterializedView,
		types.TypeDataTypeOptimization,
		types.TypeDataTypeOptimization,
		types.TypeLifecycleManagement,
	}, typesOf(recs))

	partition := recs[0]
	assert.Equal(t, "p.d.events", partition.TableID)
	assert.Equal(t, types.PriorityHigh, partition.Priority)
	assert.Equal(t, 25, partition.EstimatedSavingsPct)
	assert.Equal(t, "created_at", partition.PartitionColumn)
	assert.Equal(t, "Moderate cost reduction expected", partition.CostImpact)
	assert.Contains(t, partition.Implementation, "PARTITION BY DATE(created_at)")
	assert.Contains(t, partition.Implementation, "`p.d.events_partitioned`")
	assert.Contains(t, partition.Implementation, "RENAME TO `events`")
	assert.Equal(t, types.SourceHeuristic, partition.Source)

	combined := recs[1]
	assert.Equal(t, 35, combined.EstimatedSavingsPct)
	assert.Equal(t, []string{"customer_id", "region", "status"}, combined.ClusterColumns)

	mv := recs[2]
	assert.Equal(t, types.PriorityHigh, mv.Priority)
	assert.Equal(t, []string{"amount", "event_time"}, mv.AggColumns)
	assert.Contains(t, mv.Implementation, "GROUP BY 1, 2")

	assert.Equal(t, []string{"event_time"}, recs[4].PotentialColumns)
	assert.Contains(t, recs[5].Justification, "200 days")

	ranked := Rank(recs, 0)
	assert.Equal(t, types.PriorityHigh, ranked[0].Priority)
	assert.Equal(t, types.TypePartitionAndCluster, ranked[0].Type)
}

func TestGenerate_ClusterPartitionedTable(t *testing.T) {
	snap := types.TableSnapshot{
		ID:             types.TableID{Project: "p", Dataset: "d", Table: "orders"},
		SizeBytes:      2 * types.BytesPerGB,
		IsPartitioned:  true,
		PartitionField: "created_at",
		LastModified:   fixedNow,
		Schema:         eventsSchema()[:4],
	}

	recs := newTestGenerator(Config{}).Generate([]types.TableSnapshot{snap}, nil)
	require.NotEmpty(t, recs)
	assert.Equal(t, types.TypeCluster, recs[0].Type)
	assert.Equal(t, types.PriorityMedium, recs[0].Priority)
	assert.Equal(t, 10, recs[0].EstimatedSavingsPct)
	assert.Contains(t, recs[0].Implementation, "PARTITION BY created_at")
	assert.Contains(t, recs[0].Implementation, "CLUSTER BY customer_id, region, status")
	assert.Contains(t, recs[0].Justification, "partitioned on created_at")
}

func TestGenerate_QueryShape(t *testing.T) {
	snap := types.TableSnapshot{
		ID:            types.TableID{Project: "p", Dataset: "d", Table: "facts"},
		SizeBytes:     types.BytesPerGB,
		IsPartitioned: true,
		IsClustered:   true,
		LastModified:  fixedNow,
		Schema:        []types.SchemaField{{Name: "id", Type: "STRING"}, {Name: "day", Type: "DATE"}},
	}

	queries := func(n int, bytes int64) []types.QueryRecord {
		out := make([]types.QueryRecord, n)
		for i := range out {
			out[i] = types.QueryRecord{ReferencedTables: []string{"p.d.facts"}, TotalBytesProcessed: bytes}
		}
		return out
	}

	tests := []struct {
		name         string
		threshold    float64
		queries      []types.QueryRecord
		wantPriority types.Priority
		wantSavings  int
		wantNone     bool
	}{
		{name: "full scans", queries: queries(12, types.BytesPerGB), wantPriority: types.PriorityHigh, wantSavings: 25},
		{name: "mostly full", queries: queries(6, types.BytesPerGB*8/10), wantPriority: types.PriorityMedium, wantSavings: 15},
		{name: "just over default", queries: queries(2, types.BytesPerGB*6/10), wantPriority: types.PriorityLow, wantSavings: 5},
		{name: "raised threshold", threshold: 0.8, queries: queries(2, types.BytesPerGB*6/10), wantNone: true},
		{name: "selective queries", queries: queries(20, types.BytesPerGB/10), wantNone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(Config{ScanRatioThreshold: tt.threshold})
			var found *types.Recommendation
			for _, r := range g.Generate([]types.TableSnapshot{snap}, tt.queries) {
				if r.Type == types.TypeQueryOptimization {
					r := r
					found = &r
				}
			}
			if tt.wantNone {
				assert.Nil(t, found)
				return
			}
			require.NotNil(t, found)
			assert.Equal(t, tt.wantPriority, found.Priority)
			assert.Equal(t, tt.wantSavings, found.EstimatedSavingsPct)
			assert.Equal(t, []string{"id", "day"}, found.FilterColumns)
			assert.Contains(t, found.Implementation, "AND day BETWEEN start_date AND end_date")
		})
	}
}

func TestGenerate_ScanRatioValue(t *testing.T) {
	snap := types.TableSnapshot{
		ID:            types.TableID{Project: "p", Dataset: "d", Table: "facts"},
		SizeBytes:     types.BytesPerGB,
		IsPartitioned: true,
		IsClustered:   true,
		Schema:        []types.SchemaField{{Name: "id", Type: "STRING"}},
	}
	q := []types.QueryRecord{{ReferencedTables: []string{"p.d.facts"}, TotalBytesProcessed: types.BytesPerGB}}

	recs := newTestGenerator(Config{}).Generate([]types.TableSnapshot{snap}, q)
	require.NotEmpty(t, recs)
	assert.Equal(t, types.TypeQueryOptimization, recs[0].Type)
	assert.InDelta(t, 1.0, recs[0].ScanRatio, 1e-9)
	assert.Equal(t, "1.00 GB", recs[0].AvgBytesPerQuery)
}

func TestGenerate_Skips(t *testing.T) {
	small := types.TableSnapshot{
		ID:        types.TableID{Project: "p", Dataset: "d", Table: "tiny"},
		SizeBytes: 1024,
		RowCount:  10,
		Schema:    eventsSchema(),
	}
	noSchema := types.TableSnapshot{
		ID:        types.TableID{Project: "p", Dataset: "d", Table: "opaque"},
		SizeBytes: 50 * types.BytesPerGB,
	}

	recs := newTestGenerator(Config{}).Generate([]types.TableSnapshot{small, noSchema}, nil)
	assert.Empty(t, recs)

	// enough rows keeps a small table in scope
	small.RowCount = 5000
	recs = newTestGenerator(Config{}).Generate([]types.TableSnapshot{small}, nil)
	assert.NotEmpty(t, recs)
}

func TestGenerate_ColumnGrouping(t *testing.T) {
	fields := make([]types.SchemaField, 51)
	for i := range fields {
		fields[i] = types.SchemaField{Name: "metric", Type: "FLOAT"}
	}
	snap := types.TableSnapshot{
		ID:        types.TableID{Project: "p", Dataset: "d", Table: "wide"},
		SizeBytes: types.BytesPerGB / 20,
		Schema:    fields,
	}

	recs := newTestGenerator(Config{}).Generate([]types.TableSnapshot{snap}, nil)
	require.Len(t, recs, 1)
	assert.Equal(t, types.TypeColumnGrouping, recs[0].Type)
	assert.Equal(t, 10, recs[0].EstimatedSavingsPct)
}

func TestGenerate_DuplicateSnapshotsLastWins(t *testing.T) {
	first := types.TableSnapshot{
		ID:        types.TableID{Project: "p", Dataset: "d", Table: "events"},
		SizeBytes: 15 * types.BytesPerGB,
		Schema:    eventsSchema(),
	}
	second := first
	second.IsPartitioned = true
	second.IsClustered = true

	recs := newTestGenerator(Config{}).Generate([]types.TableSnapshot{first, second}, nil)
	for _, r := range recs {
		assert.NotEqual(t, types.TypePartition, r.Type)
	}
}
