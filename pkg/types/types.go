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

// Package types contains the data model shared by collection, analysis and output.
// Collection produces TableSnapshot and QueryRecord values, analysis consumes them and
// produces Recommendation values.
package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ============================================================================
// Tables
// ============================================================================

// BytesPerGB is the divisor used for every GB figure (binary gigabytes).
const BytesPerGB = 1 << 30

// TableKind is the warehouse object kind.
type TableKind string

const (
	TableKindTable            TableKind = "TABLE"
	TableKindView             TableKind = "VIEW"
	TableKindExternal         TableKind = "EXTERNAL"
	TableKindMaterializedView TableKind = "MATERIALIZED_VIEW"
	TableKindSnapshot         TableKind = "SNAPSHOT"
)

// TableID identifies a table by its project/dataset/table triple.
type TableID struct {
	Project string
	Dataset string
	Table   string
}

// ParseTableID parses "project.dataset.table". Backticks and a "project:dataset.table"
// legacy separator are accepted.
func ParseTableID(s string) (TableID, error) {
	s = strings.Trim(strings.TrimSpace(s), "`")
	s = strings.Replace(s, ":", ".", 1)
	parts := strings.Split(s, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return TableID{}, fmt.Errorf("invalid table id %q: expected project.dataset.table", s)
	}
	return TableID{Project: parts[0], Dataset: parts[1], Table: parts[2]}, nil
}

// String returns the dotted form "project.dataset.table".
func (t TableID) String() string {
	return t.Project + "." + t.Dataset + "." + t.Table
}

// LegacyKey returns the dotted id with dots replaced by underscores, the key format
// older vector collections were written with.
func (t TableID) LegacyKey() string {
	return strings.ReplaceAll(t.String(), ".", "_")
}

// SchemaField is one column of a table schema. RECORD columns carry nested Fields.
type SchemaField struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Mode        string        `json:"mode,omitempty"`
	Description string        `json:"description,omitempty"`
	Fields      []SchemaField `json:"fields,omitempty"`
}

// ParseSchemaJSON decodes a serialized schema (a JSON array of fields).
// Empty input yields an empty schema.
func ParseSchemaJSON(s string) ([]SchemaField, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, nil
	}
	var fields []SchemaField
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// SchemaJSON serializes a schema for flat outputs.
func SchemaJSON(fields []SchemaField) string {
	if len(fields) == 0 {
		return "[]"
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// HasNestedFields reports whether any top-level field is a RECORD/STRUCT or carries
// sub-fields.
func HasNestedFields(fields []SchemaField) bool {
	for _, f := range fields {
		if len(f.Fields) > 0 || f.Type == "RECORD" || f.Type == "STRUCT" {
			return true
		}
	}
	return false
}

var shardSuffix = regexp.MustCompile(`\d{8}`)

// TableSnapshot is the metadata of one table captured by a single collection pass.
// Snapshots are never mutated; the next pass supersedes them.
type TableSnapshot struct {
	// ID is the table identifier
	ID TableID

	// SizeBytes is the logical size. SizeGB is derived from it.
	SizeBytes int64

	// RowCount is the number of rows
	RowCount int64

	// Partitioning
	IsPartitioned          bool
	PartitionField         string
	PartitionType          string // DAY, HOUR, MONTH, YEAR or RANGE
	RequirePartitionFilter bool

	// Clustering, in cluster-key order
	IsClustered      bool
	ClusteringFields []string

	// Timestamps. Zero values mean unknown.
	LastModified time.Time
	CreationTime time.Time
	Expiration   time.Time

	ColumnCount        int
	HasNestedSchema    bool
	HasStreamingBuffer bool
	Kind               TableKind
	HasLabels          bool
	HasDescription     bool

	// StorageBillingModel is LOGICAL or PHYSICAL when known
	StorageBillingModel string

	// Schema is the ordered top-level field list
	Schema []SchemaField
}

// SizeGB returns the size in binary gigabytes.
func (t *TableSnapshot) SizeGB() float64 {
	return float64(t.SizeBytes) / BytesPerGB
}

// HasExpiration reports whether an expiration timestamp is set.
func (t *TableSnapshot) HasExpiration() bool {
	return !t.Expiration.IsZero()
}

// DaysSinceModified returns whole days between LastModified and now. The second
// result is false when the modification time is unknown.
func (t *TableSnapshot) DaysSinceModified(now time.Time) (int, bool) {
	if t.LastModified.IsZero() {
		return 0, false
	}
	return int(now.Sub(t.LastModified).Hours() / 24), true
}

// IsSharded reports whether the table name carries a date-shard suffix such as
// events_20240101.
func (t *TableSnapshot) IsSharded() bool {
	return shardSuffix.MatchString(t.ID.Table)
}

// ============================================================================
// Query history
// ============================================================================

// QueryRecord is one historical query job.
type QueryRecord struct {
	JobID               string
	CreationTime        time.Time
	UserEmail           string
	QueryText           string
	TotalBytesProcessed int64
	TotalSlotMs         int64

	// ReferencedTables holds dotted table ids in the order reported by the source.
	// It may be empty, and the source does not guarantee it is deduplicated.
	ReferencedTables []string

	Status     string
	DurationMs int64
}

var quotedItem = regexp.MustCompile(`['"]([^'"]*)['"]`)

// ParseTableList reads a serialized table list as written to flat files:
// a JSON or Python-style list ("['a', 'b']"), a bare bracketed list, or a
// comma-separated string. "None" and "[]" yield nil.
func ParseTableList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "null" || s == "[]" {
		return nil
	}

	var items []string
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		inner := s[1 : len(s)-1]
		if strings.ContainsAny(inner, `'"`) {
			for _, m := range quotedItem.FindAllStringSubmatch(inner, -1) {
				items = append(items, m[1])
			}
		} else {
			items = strings.Split(inner, ",")
		}
	} else {
		items = strings.Split(s, ",")
	}

	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ============================================================================
// Recommendations
// ============================================================================

// RecommendationType classifies a recommendation.
type RecommendationType string

const (
	TypePartition            RecommendationType = "PARTITION"
	TypeCluster              RecommendationType = "CLUSTER"
	TypePartitionAndCluster  RecommendationType = "PARTITION_AND_CLUSTER"
	TypeQueryOptimization    RecommendationType = "QUERY_OPTIMIZATION"
	TypeMaterializedView     RecommendationType = "MATERIALIZED_VIEW"
	TypeDataTypeOptimization RecommendationType = "DATA_TYPE_OPTIMIZATION"
	TypeColumnGrouping       RecommendationType = "COLUMN_GROUPING"
	TypeLifecycleManagement  RecommendationType = "LIFECYCLE_MANAGEMENT"
)

// Priority orders recommendations for ranking.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Weight maps the priority onto the ranking scale: HIGH=3, MEDIUM=2, LOW=1, other=0.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ParsePriority normalises free text to a Priority. The second result is false when
// the text does not name a known priority.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH":
		return PriorityHigh, true
	case "MEDIUM", "MED":
		return PriorityMedium, true
	case "LOW":
		return PriorityLow, true
	}
	return "", false
}

// Source records which pipeline produced a recommendation.
type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceLLM       Source = "llm"
)

// UnknownTableID is used when a recommendation cannot be attributed to a table.
const UnknownTableID = "unknown"

// Recommendation is one explainable optimization suggestion for exactly one table.
type Recommendation struct {
	TableID             string             `json:"table_id"`
	Type                RecommendationType `json:"recommendation_type"`
	Recommendation      string             `json:"recommendation"`
	Justification       string             `json:"justification"`
	Implementation      string             `json:"implementation"`
	EstimatedSavingsPct int                `json:"estimated_savings_pct"`
	Priority            Priority           `json:"priority"`

	// Type-specific detail. Empty when not applicable.
	PotentialColumns []string `json:"potential_columns,omitempty"`
	PartitionColumn  string   `json:"partition_column,omitempty"`
	ClusterColumns   []string `json:"cluster_columns,omitempty"`
	FilterColumns    []string `json:"potential_filter_columns,omitempty"`
	AggColumns       []string `json:"potential_agg_columns,omitempty"`
	DimColumns       []string `json:"potential_dim_columns,omitempty"`
	ScanRatio        float64  `json:"scan_ratio,omitempty"`
	AvgBytesPerQuery string   `json:"avg_bytes_per_query,omitempty"`
	QueryImprovement string   `json:"query_improvement,omitempty"`
	CostImpact       string   `json:"cost_impact,omitempty"`

	// Originating query for LLM recommendations
	QueryID        string    `json:"query_id,omitempty"`
	QueryText      string    `json:"query_text,omitempty"`
	QueryCreatedAt time.Time `json:"query_created_at,omitempty"`

	Source Source `json:"source,omitempty"`
}

// ============================================================================
// Schema documents
// ============================================================================

// SchemaDocument is the indexed form of a TableSnapshot.
type SchemaDocument struct {
	// TableID is the dotted table id
	TableID string

	// PointID is the stable key the document is stored under
	PointID string

	// SchemaText is the canonical text rendering of the snapshot
	SchemaText string

	// Embedding is the unit-normalized vector
	Embedding []float32

	// Snapshot is the originating snapshot; nil when the store returned only text
	Snapshot *TableSnapshot
}
