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

// Package criteria holds the fixed registry of table optimization rules and the
// evaluator that applies it to one TableSnapshot.
package criteria

import (
	"strings"
	"time"
	"unicode"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

// NoSuggestions is the sentinel id returned when no rule triggers.
const NoSuggestions = "no_suggestions"

// NoSuggestionsText is the rendered form of NoSuggestions.
const NoSuggestionsText = "No specific optimization suggestions."

// Group classifies rules for reporting.
type Group string

const (
	GroupSize      Group = "size"
	GroupAge       Group = "age"
	GroupStructure Group = "structure"
	GroupMetadata  Group = "metadata"
	GroupPartition Group = "partition"
)

// Facts is the normalized view of a snapshot that predicates read. LastModifiedDays
// is nil when the modification time is unknown.
type Facts struct {
	TableName              string
	SizeGB                 float64
	RowCount               int64
	IsPartitioned          bool
	IsClustered            bool
	RequirePartitionFilter bool
	LastModifiedDays       *int
	HasExpiration          bool
	ColumnCount            int
	HasNestedSchema        bool
	HasStreamingBuffer     bool
	Kind                   types.TableKind
	HasLabels              bool
	HasDescription         bool
	IsSharded              bool
}

// NewFacts derives Facts from a snapshot at the given instant.
func NewFacts(s *types.TableSnapshot, now time.Time) Facts {
	f := Facts{
		TableName:              s.ID.Table,
		SizeGB:                 s.SizeGB(),
		RowCount:               s.RowCount,
		IsPartitioned:          s.IsPartitioned,
		IsClustered:            s.IsClustered,
		RequirePartitionFilter: s.RequirePartitionFilter,
		HasExpiration:          s.HasExpiration(),
		ColumnCount:            s.ColumnCount,
		HasNestedSchema:        s.HasNestedSchema,
		HasStreamingBuffer:     s.HasStreamingBuffer,
		Kind:                   s.Kind,
		HasLabels:              s.HasLabels,
		HasDescription:         s.HasDescription,
		IsSharded:              s.IsSharded(),
	}
	if f.ColumnCount == 0 {
		f.ColumnCount = len(s.Schema)
	}
	if !f.HasNestedSchema {
		f.HasNestedSchema = types.HasNestedFields(s.Schema)
	}
	if days, ok := s.DaysSinceModified(now); ok {
		f.LastModifiedDays = &days
	}
	return f
}

// Rule is one registered criterion.
type Rule struct {
	// Name is the criterion key
	Name string

	// RecommendationID is what the rule contributes to the evaluator output.
	// Several rules may share an id.
	RecommendationID string

	Group       Group
	Description string
	Savings     string
	Check       func(f Facts) bool
}

// Text renders the rule as a suggestion sentence.
func (r Rule) Text() string {
	return r.Description + " (" + r.Savings + ")."
}

func modifiedMoreThan(f Facts, days int) bool {
	return f.LastModifiedDays != nil && *f.LastModifiedDays > days
}

// rules is the registry, in registration order.
var rules = []Rule{
	// size
	{
		Name: "large_unpartitioned", RecommendationID: "partition_large_table", Group: GroupSize,
		Description: "Large tables should be partitioned or clustered",
		Savings:     "20-50% cost reduction",
		Check:       func(f Facts) bool { return f.SizeGB > 1 && !f.IsPartitioned && !f.IsClustered },
	},
	{
		Name: "very_large_table", RecommendationID: "prune_large_table", Group: GroupSize,
		Description: "Very large tables should have unused columns pruned or filters applied",
		Savings:     "10-30% cost saving",
		Check:       func(f Facts) bool { return f.SizeGB > 10 },
	},
	{
		Name: "materialized_view_candidate", RecommendationID: "use_materialized_views", Group: GroupSize,
		Description: "Large tables with frequent queries should use materialized views",
		Savings:     "30-70% cost/performance improvement",
		Check:       func(f Facts) bool { return f.SizeGB > 5 },
	},
	{
		Name: "large_table_no_expiration", RecommendationID: "set_table_expiration", Group: GroupSize,
		Description: "Large tables should have expiration policies set",
		Savings:     "10-30% long-term storage savings",
		Check:       func(f Facts) bool { return f.SizeGB > 2 && !f.HasExpiration },
	},
	{
		Name: "bi_engine_candidate", RecommendationID: "use_bi_engine", Group: GroupSize,
		Description: "Tables used for dashboards should consider BI Engine",
		Savings:     "up to 50% performance gain",
		Check:       func(f Facts) bool { return f.SizeGB > 1 },
	},
	{
		Name: "large_partitioned_unclustered", RecommendationID: "cluster_partitioned_table", Group: GroupSize,
		Description: "Large partitioned tables should also be clustered",
		Savings:     "20-40% query performance improvement",
		Check:       func(f Facts) bool { return f.SizeGB > 5 && f.IsPartitioned && !f.IsClustered },
	},
	{
		Name: "large_nested_schema", RecommendationID: "flatten_nested_schema", Group: GroupSize,
		Description: "Large tables with nested schemas should consider flattening",
		Savings:     "10-25% query cost reduction",
		Check:       func(f Facts) bool { return f.SizeGB > 1 && f.HasNestedSchema },
	},
	{
		Name: "large_frequently_updated", RecommendationID: "use_incremental_loads", Group: GroupSize,
		Description: "Large tables updated frequently should use incremental loads",
		Savings:     "20-40% cost saving",
		Check: func(f Facts) bool {
			return f.SizeGB > 5 && f.LastModifiedDays != nil && *f.LastModifiedDays < 1
		},
	},

	// age
	{
		Name: "old_table_no_expiration", RecommendationID: "expire_old_tables", Group: GroupAge,
		Description: "Old tables should have expiration or archiving",
		Savings:     "20-40% storage saving",
		Check:       func(f Facts) bool { return modifiedMoreThan(f, 90) },
	},
	{
		Name: "very_old_table_no_expiration", RecommendationID: "expire_very_old_tables", Group: GroupAge,
		Description: "Long-unused tables with no expiration should be archived or expired",
		Savings:     "20%+ storage cost saving",
		Check:       func(f Facts) bool { return modifiedMoreThan(f, 180) && !f.HasExpiration },
	},

	// structure
	{
		Name: "sharded_table", RecommendationID: "replace_sharded_tables", Group: GroupStructure,
		Description: "Date-sharded tables should be replaced with partitioned tables",
		Savings:     "up to 80% scan cost reduction",
		Check:       func(f Facts) bool { return f.IsSharded },
	},
	{
		Name: "too_many_columns", RecommendationID: "reduce_column_count", Group: GroupStructure,
		Description: "Tables with many columns should be split or restructured",
		Savings:     "10-20% efficiency gain",
		Check:       func(f Facts) bool { return f.ColumnCount > 50 },
	},
	{
		Name: "partitioned_no_filter", RecommendationID: "require_partition_filters", Group: GroupStructure,
		Description: "Partitioned tables should require partition filters",
		Savings:     "30-90% cost reduction",
		Check:       func(f Facts) bool { return f.IsPartitioned && !f.RequirePartitionFilter },
	},
	{
		Name: "view_not_materialized", RecommendationID: "materialize_views", Group: GroupStructure,
		Description: "Views should be materialized for frequent queries",
		Savings:     "30-60% repeated query savings",
		Check:       func(f Facts) bool { return f.Kind == types.TableKindView },
	},
	{
		Name: "external_table_optimization", RecommendationID: "optimize_external_tables", Group: GroupStructure,
		Description: "External tables should ensure proper data pruning",
		Savings:     "20-40% cost saving",
		Check:       func(f Facts) bool { return f.Kind == types.TableKindExternal },
	},
	{
		Name: "streaming_buffer_optimization", RecommendationID: "use_batch_loads", Group: GroupStructure,
		Description: "Tables using streaming buffer should consider batch loads",
		Savings:     "50%+ cheaper than streaming",
		Check:       func(f Facts) bool { return f.HasStreamingBuffer },
	},

	// metadata
	{
		Name: "missing_labels", RecommendationID: "add_labels", Group: GroupMetadata,
		Description: "Tables should have labels for governance",
		Savings:     "indirect cost control benefits",
		Check:       func(f Facts) bool { return !f.HasLabels },
	},
	{
		Name: "missing_description", RecommendationID: "add_descriptions", Group: GroupMetadata,
		Description: "Tables should have descriptions for discoverability",
		Savings:     "reduces accidental queries ~10%",
		Check:       func(f Facts) bool { return !f.HasDescription },
	},
	{
		Name: "non_descriptive_name", RecommendationID: "use_descriptive_names", Group: GroupMetadata,
		Description: "Tables should have descriptive names",
		Savings:     "indirect cost avoidance",
		Check:       func(f Facts) bool { return strings.IndexFunc(f.TableName, unicode.IsLetter) < 0 },
	},

	// partition strategy
	{
		Name: "misaligned_partitioning", RecommendationID: "realign_partition_strategy", Group: GroupPartition,
		Description: "Partitioning strategy may be misaligned",
		Savings:     "20-50% scan reduction",
		Check: func(f Facts) bool {
			return f.IsPartitioned && strings.Contains(strings.ToLower(f.TableName), "time") && f.IsSharded
		},
	},
}

// Order is the output order of recommendation ids: cost savings, performance, storage,
// structure, loading, then governance.
var Order = []string{
	"partition_large_table",
	"replace_sharded_tables",
	"require_partition_filters",

	"cluster_partitioned_table",
	"use_materialized_views",
	"materialize_views",

	"expire_old_tables",
	"expire_very_old_tables",
	"set_table_expiration",

	"prune_large_table",
	"reduce_column_count",
	"flatten_nested_schema",
	"realign_partition_strategy",

	"use_incremental_loads",
	"use_batch_loads",
	"optimize_external_tables",

	"use_bi_engine",

	"add_labels",
	"add_descriptions",
	"use_descriptive_names",
}

// Rules returns a copy of the registry.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// ByID returns the rule that contributes the given recommendation id. When several
// rules share an id the last registered one wins.
func ByID(id string) (Rule, bool) {
	var found Rule
	ok := false
	for _, r := range rules {
		if r.RecommendationID == id {
			found, ok = r, true
		}
	}
	return found, ok
}
