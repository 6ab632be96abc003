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
	"fmt"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

const gib = float64(types.BytesPerGB)

// tableContext is the per-table input shared by every strategy.
type tableContext struct {
	snap       *types.TableSnapshot
	id         string
	sizeGB     float64
	refs       int
	bytes      float64
	daysIdle   int
	fields     []types.SchemaField
	partitions []string
	clusters   []string
}

func quoted(id string) string {
	return "`" + id + "`"
}

func shortName(id string) string {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[i+1:]
	}
	return id
}

func doc(format string, args ...interface{}) string {
	return strings.TrimSpace(heredoc.Docf(format, args...))
}

func tier(high, medium bool, h, m, l int) (types.Priority, int) {
	switch {
	case high:
		return types.PriorityHigh, h
	case medium:
		return types.PriorityMedium, m
	default:
		return types.PriorityLow, l
	}
}

func partitionStrategy(tc *tableContext) *types.Recommendation {
	if tc.snap.IsPartitioned || len(tc.partitions) == 0 {
		return nil
	}
	col := tc.partitions[0]
	priority, savings := tier(tc.sizeGB > 10 || tc.refs > 10, tc.sizeGB > 1 || tc.refs > 5, 25, 15, 5)

	impact := "Minor cost reduction possible"
	switch {
	case tc.sizeGB > 100:
		impact = "Significant cost reduction expected"
	case tc.sizeGB > 10:
		impact = "Moderate cost reduction expected"
	}

	return &types.Recommendation{
		TableID:        tc.id,
		Type:           types.TypePartition,
		Recommendation: "Partition table on " + col,
		Justification: fmt.Sprintf("Table is %.2f GB and has %d potential date/timestamp fields for partitioning. "+
			"Partitioning can improve query performance and reduce costs by limiting the amount of data scanned. "+
			"%d queries referenced this table in the analysis period.", tc.sizeGB, len(tc.partitions), tc.refs),
		Implementation: doc(`
			-- To partition this table, you can create a new partitioned table and copy data:
			CREATE OR REPLACE TABLE %s
			PARTITION BY DATE(%s)
			AS SELECT * FROM %s;

			-- Then you can drop the old table and rename the new one:
			DROP TABLE %s;
			ALTER TABLE %s RENAME TO %s;
		`, quoted(tc.id+"_partitioned"), col, quoted(tc.id), quoted(tc.id), quoted(tc.id+"_partitioned"), quoted(shortName(tc.id))),
		EstimatedSavingsPct: savings,
		Priority:            priority,
		PotentialColumns:    tc.partitions,
		PartitionColumn:     col,
		QueryImprovement:    "20-90% (depending on query patterns)",
		CostImpact:          impact,
	}
}

func clusterStrategy(tc *tableContext) *types.Recommendation {
	if !tc.snap.IsPartitioned || tc.snap.IsClustered || len(tc.clusters) == 0 {
		return nil
	}
	cols := firstN(tc.clusters, MaxClusterColumns)
	priority, savings := tier(tc.sizeGB > 5 || tc.refs > 10, tc.sizeGB > 0.5 || tc.refs > 5, 20, 10, 3)

	impact := "Minimal cost impact"
	switch {
	case tc.sizeGB > 50:
		impact = "Moderate cost reduction expected"
	case tc.sizeGB > 5:
		impact = "Minor cost reduction expected"
	}

	partitionClause := "-- Maintain existing partitioning"
	on := ""
	if f := tc.snap.PartitionField; f != "" {
		partitionClause = "PARTITION BY " + f
		on = " on " + f
	}

	return &types.Recommendation{
		TableID:        tc.id,
		Type:           types.TypeCluster,
		Recommendation: "Cluster this partitioned table on " + strings.Join(cols, ", "),
		Justification: fmt.Sprintf("Table is already partitioned%s but not clustered. Clustering on high-cardinality "+
			"columns can further improve query performance by co-locating related data. This is especially "+
			"effective when queries filter on the clustering columns.", on),
		Implementation: doc(`
			-- To add clustering to this partitioned table:
			CREATE OR REPLACE TABLE %s
			%s
			CLUSTER BY %s
			AS SELECT * FROM %s;

			-- Then you can drop the old table and rename the new one:
			DROP TABLE %s;
			ALTER TABLE %s RENAME TO %s;
		`, quoted(tc.id+"_clustered"), partitionClause, strings.Join(cols, ", "), quoted(tc.id),
			quoted(tc.id), quoted(tc.id+"_clustered"), quoted(shortName(tc.id))),
		EstimatedSavingsPct: savings,
		Priority:            priority,
		PotentialColumns:    cols,
		ClusterColumns:      cols,
		QueryImprovement:    "10-40% (depending on query patterns)",
		CostImpact:          impact,
	}
}

func combinedStrategy(tc *tableContext) *types.Recommendation {
	if tc.snap.IsPartitioned || tc.snap.IsClustered || len(tc.partitions) == 0 || len(tc.clusters) == 0 {
		return nil
	}
	col := tc.partitions[0]
	cols := firstN(tc.clusters, MaxClusterColumns)
	priority, savings := tier(tc.sizeGB > 5 || tc.refs > 10, tc.sizeGB > 1 || tc.refs > 5, 35, 20, 7)

	impact := "Minor cost reduction possible"
	switch {
	case tc.sizeGB > 50:
		impact = "Significant cost reduction expected"
	case tc.sizeGB > 5:
		impact = "Moderate cost reduction expected"
	}

	return &types.Recommendation{
		TableID:        tc.id,
		Type:           types.TypePartitionAndCluster,
		Recommendation: fmt.Sprintf("Partition on %s and cluster on %s", col, strings.Join(cols, ", ")),
		Justification: fmt.Sprintf("Table has both partitioning and clustering potential. Implementing both can "+
			"significantly improve query performance and reduce costs by limiting data scanned. This table is "+
			"%.2f GB and was referenced by %d queries in the analysis period.", tc.sizeGB, tc.refs),
		Implementation: doc(`
			-- To add both partitioning and clustering to this table:
			CREATE OR REPLACE TABLE %s
			PARTITION BY DATE(%s)
			CLUSTER BY %s
			AS SELECT * FROM %s;

			-- Then you can drop the old table and rename the new one:
			DROP TABLE %s;
			ALTER TABLE %s RENAME TO %s;
		`, quoted(tc.id+"_optimized"), col, strings.Join(cols, ", "), quoted(tc.id),
			quoted(tc.id), quoted(tc.id+"_optimized"), quoted(shortName(tc.id))),
		EstimatedSavingsPct: savings,
		Priority:            priority,
		PartitionColumn:     col,
		ClusterColumns:      cols,
		QueryImprovement:    "30-90% (depending on query patterns)",
		CostImpact:          impact,
	}
}

func queryShapeStrategy(tc *tableContext, threshold float64) *types.Recommendation {
	size := float64(tc.snap.SizeBytes)
	if tc.refs <= 0 || size <= 0 || tc.bytes <= 0 {
		return nil
	}
	ratio := tc.bytes / (size * float64(tc.refs))
	if ratio < threshold {
		return nil
	}

	filters := namesWhere(tc.fields, func(f types.SchemaField) bool { return filterTypes[f.Type] })
	if len(filters) == 0 {
		return nil
	}

	priority, savings := tier(
		ratio > 0.9 && (tc.refs > 10 || tc.bytes > 10*gib),
		ratio > 0.7 && (tc.refs > 5 || tc.bytes > gib),
		25, 15, 5)

	selected := strings.Join(firstN(filters, 5), ", ")
	if len(filters) > 5 {
		selected += ", ..."
	}
	rangeFilter := ""
	if len(filters) > 1 {
		rangeFilter = "AND " + filters[1] + " BETWEEN start_date AND end_date"
	}
	avgGB := tc.bytes / float64(tc.refs) / gib

	return &types.Recommendation{
		TableID:        tc.id,
		Type:           types.TypeQueryOptimization,
		Recommendation: "Optimize queries to reduce the amount of data scanned",
		Justification: fmt.Sprintf("Queries are scanning %.2fx the table size on average (%.2f GB per query). "+
			"Adding filters on %s and selecting only needed columns could significantly reduce data scanned "+
			"and improve performance.", ratio, avgGB, strings.Join(firstN(filters, 3), ", ")),
		Implementation: doc(`
			-- Example of query optimization by adding filters and column pruning:

			-- BEFORE:
			SELECT * FROM %s

			-- AFTER (add filters and select specific columns):
			SELECT
			  -- Select only needed columns instead of SELECT *
			  %s
			FROM
			  %s
			WHERE
			  -- Add filters on these high-cardinality columns when possible
			  %s = 'value'
			  -- Consider adding a date range filter if applicable
			  %s
		`, quoted(tc.id), selected, quoted(tc.id), filters[0], rangeFilter),
		EstimatedSavingsPct: savings,
		Priority:            priority,
		FilterColumns:       firstN(filters, 5),
		ScanRatio:           ratio,
		AvgBytesPerQuery:    fmt.Sprintf("%.2f GB", avgGB),
	}
}

func materializedViewStrategy(tc *tableContext) *types.Recommendation {
	if tc.refs <= 0 && tc.sizeGB <= 0.1 {
		return nil
	}
	aggs := namesWhere(tc.fields, func(f types.SchemaField) bool { return aggTypes[f.Type] })
	dims := namesWhere(tc.fields, func(f types.SchemaField) bool { return dimensionTypes[f.Type] })
	if len(aggs) == 0 || len(dims) == 0 {
		return nil
	}

	priority, savings := tier(tc.refs >= 10 || tc.sizeGB >= 10, tc.refs >= 5 || tc.sizeGB >= 1, 30, 20, 10)

	sampleDims := firstN(dims, 2)
	sampleAggs := firstN(aggs, 2)
	sums := make([]string, len(sampleAggs))
	avgs := make([]string, len(sampleAggs))
	for i, a := range sampleAggs {
		sums[i] = fmt.Sprintf("SUM(%s) as total_%s", a, a)
		avgs[i] = fmt.Sprintf("AVG(%s) as avg_%s", a, a)
	}
	groupBy := make([]string, len(sampleDims))
	for i := range sampleDims {
		groupBy[i] = strconv.Itoa(i + 1)
	}

	return &types.Recommendation{
		TableID:        tc.id,
		Type:           types.TypeMaterializedView,
		Recommendation: "Create materialized views for frequently queried aggregations",
		Justification: fmt.Sprintf("Table has %d numeric columns that could benefit from pre-aggregated views. "+
			"Materialized views can dramatically improve performance for analytical queries while reducing "+
			"processing costs. They're automatically updated when the source table changes.", len(aggs)),
		Implementation: doc(`
			-- Sample materialized view for common aggregation patterns:
			CREATE MATERIALIZED VIEW %s
			AS SELECT
			  %s,
			  COUNT(*) as record_count,
			  %s,
			  %s
			FROM %s
			GROUP BY %s;

			-- Example query using the materialized view:
			SELECT * FROM %s
			WHERE %s = 'value';
		`, quoted(tc.id+"_mv_daily_agg"), strings.Join(sampleDims, ", "), strings.Join(sums, ", "),
			strings.Join(avgs, ", "), quoted(tc.id), strings.Join(groupBy, ", "),
			quoted(tc.id+"_mv_daily_agg"), sampleDims[0]),
		EstimatedSavingsPct: savings,
		Priority:            priority,
		AggColumns:          aggs,
		DimColumns:          dims,
		QueryImprovement:    "50-99% for aggregate queries",
	}
}

func columnStrategies(tc *tableContext) []types.Recommendation {
	var recs []types.Recommendation

	strs := namesWhere(tc.fields, func(f types.SchemaField) bool { return f.Type == "STRING" })
	if len(strs) >= 3 {
		recs = append(recs, types.Recommendation{
			TableID:        tc.id,
			Type:           types.TypeDataTypeOptimization,
			Recommendation: "Consider CATEGORY data type for low-cardinality string columns",
			Justification: fmt.Sprintf("Table has %d STRING columns. For low-cardinality string columns (like status, "+
				"type, country), using the CATEGORY data type can improve compression and query performance.", len(strs)),
			Implementation: doc(`
				-- Example of converting string columns to CATEGORY:
				CREATE OR REPLACE TABLE %s
				AS SELECT
				  *
				  -- Convert low-cardinality string columns to CATEGORY
				  -- Example: CAST(status AS CATEGORY) AS status,
				  -- Example: CAST(country AS CATEGORY) AS country
				FROM %s;
			`, quoted(tc.id+"_optimized"), quoted(tc.id)),
			EstimatedSavingsPct: 5,
			Priority:            types.PriorityMedium,
			PotentialColumns:    firstN(strs, 5),
		})
	}

	if len(tc.fields) > 50 {
		recs = append(recs, types.Recommendation{
			TableID:        tc.id,
			Type:           types.TypeColumnGrouping,
			Recommendation: "Use column grouping to improve query performance",
			Justification: fmt.Sprintf("Table has %d columns. Using column grouping can improve performance for "+
				"queries that only need to access a subset of columns.", len(tc.fields)),
			Implementation: doc(`
				-- Example of adding column grouping to a table:
				CREATE OR REPLACE TABLE %s
				(
				  -- Main group for frequently accessed columns
				  id STRING,
				  created_at TIMESTAMP,
				  status STRING,

				  -- Group for descriptive columns
				  descriptive STRUCT<description STRING, notes STRING, tags ARRAY<STRING>>,

				  -- Group for metrics
				  metrics STRUCT<value FLOAT64, quantity INT64>
				)
				AS SELECT
				  id,
				  created_at,
				  status,
				  STRUCT(description, notes, tags) AS descriptive,
				  STRUCT(value, quantity) AS metrics
				FROM %s;
			`, quoted(tc.id+"_grouped"), quoted(tc.id)),
			EstimatedSavingsPct: 10,
			Priority:            types.PriorityMedium,
		})
	}

	epochs := namesWhere(tc.fields, func(f types.SchemaField) bool {
		return f.Type == "INTEGER" && containsAny(f.Name, epochKeywords)
	})
	if len(epochs) > 0 {
		recs = append(recs, types.Recommendation{
			TableID:        tc.id,
			Type:           types.TypeDataTypeOptimization,
			Recommendation: "Convert integer timestamp columns to TIMESTAMP type",
			Justification: fmt.Sprintf("Table has %d integer columns that may contain timestamp data. Converting "+
				"these to TIMESTAMP type allows using BigQuery's date/time functions and potentially enables "+
				"partitioning.", len(epochs)),
			Implementation: doc(`
				-- Example of converting Unix timestamps to TIMESTAMP:
				CREATE OR REPLACE TABLE %s
				AS SELECT
				  -- Convert Unix timestamps (seconds since epoch)
				  TIMESTAMP_SECONDS(%s) AS %s,
				  -- For milliseconds timestamps:
				  -- TIMESTAMP_MILLIS(%s) AS %s,

				  -- Keep other columns as is
				  * EXCEPT (%s)
				FROM %s;
			`, quoted(tc.id+"_converted"), epochs[0], epochs[0], epochs[0], epochs[0],
				strings.Join(epochs, ", "), quoted(tc.id)),
			EstimatedSavingsPct: 5,
			Priority:            types.PriorityMedium,
			PotentialColumns:    epochs,
		})
	}

	return recs
}

func lifecycleStrategy(tc *tableContext) *types.Recommendation {
	if tc.snap.HasExpiration() || tc.daysIdle <= 180 {
		return nil
	}
	return &types.Recommendation{
		TableID:        tc.id,
		Type:           types.TypeLifecycleManagement,
		Recommendation: "Set table expiration for old data",
		Justification: fmt.Sprintf("Table hasn't been modified in %d days but doesn't have expiration set. "+
			"Adding table expiration can reduce storage costs for old data.", tc.daysIdle),
		Implementation: doc(`
			-- Add expiration to existing table (e.g., expire after 1 year):
			ALTER TABLE %s
			SET OPTIONS (
			  expiration_timestamp = TIMESTAMP_ADD(CURRENT_TIMESTAMP(), INTERVAL 365 DAY)
			);
		`, quoted(tc.id)),
		EstimatedSavingsPct: 5,
		Priority:            types.PriorityMedium,
	}
}
