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

package output

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/cloudact/bqoptimizer/pkg/criteria"
	"github.com/cloudact/bqoptimizer/pkg/types"
)

// RecommendationColumns is the column order of the recommendations file.
var RecommendationColumns = []string{
	"table_id", "recommendation_type", "recommendation", "justification",
	"implementation", "estimated_savings_pct", "priority", "source",
	"partition_column", "cluster_columns", "potential_columns",
	"potential_filter_columns", "potential_agg_columns", "potential_dim_columns",
	"scan_ratio", "avg_bytes_per_query", "query_improvement", "cost_impact",
	"query_id", "query_text", "query_created_at",
}

// MetadataColumns is the column order of the table metadata file.
var MetadataColumns = []string{
	"table_id", "dataset_id", "table_name", "size_bytes", "size_gb", "row_count",
	"is_partitioned", "partition_field", "partition_type", "require_partition_filter",
	"is_clustered", "clustering_fields", "last_modified", "days_since_modified",
	"table_type", "schema", "has_expiration", "expiration_date", "column_count",
	"has_nested_schema", "storage_billing_model", "creation_time",
	"has_streaming_buffer", "has_labels", "has_description",
}

// QueryColumns is the column order of the query history file.
var QueryColumns = []string{
	"job_id", "creation_time", "user_email", "query_text", "total_bytes_processed",
	"total_slot_ms", "referenced_tables", "status", "duration_ms",
}

// SuggestionColumns is the column order of the suggestions file. It matches
// the warehouse suggestions table.
var SuggestionColumns = []string{
	"project_id", "dataset_id", "table_id", "suggestions", "table_size_bytes",
	"table_size_gb", "row_count", "is_partitioned", "partition_type", "is_clustered",
	"clustering_fields", "last_modified", "last_modified_days", "has_expiration",
	"expiration_date", "column_count", "has_nested_schema", "storage_billing_model",
	"creation_time", "has_streaming_buffer", "table_type", "has_labels",
	"has_description", "analyzed_at",
}

// RecommendationTable flattens recommendations into rows.
func RecommendationTable(recs []types.Recommendation) Table {
	t := Table{Header: RecommendationColumns}
	for _, r := range recs {
		scan := ""
		if r.ScanRatio != 0 {
			scan = strconv.FormatFloat(r.ScanRatio, 'f', 4, 64)
		}
		t.Rows = append(t.Rows, []string{
			r.TableID,
			string(r.Type),
			r.Recommendation,
			r.Justification,
			r.Implementation,
			strconv.Itoa(r.EstimatedSavingsPct),
			string(r.Priority),
			string(r.Source),
			r.PartitionColumn,
			jsonList(r.ClusterColumns),
			jsonList(r.PotentialColumns),
			jsonList(r.FilterColumns),
			jsonList(r.AggColumns),
			jsonList(r.DimColumns),
			scan,
			r.AvgBytesPerQuery,
			r.QueryImprovement,
			r.CostImpact,
			r.QueryID,
			r.QueryText,
			formatTime(r.QueryCreatedAt),
		})
	}
	return t
}

// MetadataTable flattens snapshots into rows.
func MetadataTable(snapshots []types.TableSnapshot, now time.Time) Table {
	t := Table{Header: MetadataColumns}
	for i := range snapshots {
		s := &snapshots[i]
		days := ""
		if d, ok := s.DaysSinceModified(now); ok {
			days = strconv.Itoa(d)
		}
		clustering := ""
		if s.IsClustered {
			clustering = jsonList(s.ClusteringFields)
		}
		columns := s.ColumnCount
		if columns == 0 {
			columns = len(s.Schema)
		}
		t.Rows = append(t.Rows, []string{
			s.ID.String(),
			s.ID.Dataset,
			s.ID.Table,
			strconv.FormatInt(s.SizeBytes, 10),
			strconv.FormatFloat(s.SizeGB(), 'f', 4, 64),
			strconv.FormatInt(s.RowCount, 10),
			strconv.FormatBool(s.IsPartitioned),
			s.PartitionField,
			s.PartitionType,
			strconv.FormatBool(s.RequirePartitionFilter),
			strconv.FormatBool(s.IsClustered),
			clustering,
			formatTime(s.LastModified),
			days,
			string(s.Kind),
			types.SchemaJSON(s.Schema),
			strconv.FormatBool(s.HasExpiration()),
			formatTime(s.Expiration),
			strconv.Itoa(columns),
			strconv.FormatBool(s.HasNestedSchema || types.HasNestedFields(s.Schema)),
			s.StorageBillingModel,
			formatTime(s.CreationTime),
			strconv.FormatBool(s.HasStreamingBuffer),
			strconv.FormatBool(s.HasLabels),
			strconv.FormatBool(s.HasDescription),
		})
	}
	return t
}

// QueryTable flattens query records into rows.
func QueryTable(records []types.QueryRecord) Table {
	t := Table{Header: QueryColumns}
	for _, q := range records {
		t.Rows = append(t.Rows, []string{
			q.JobID,
			formatTime(q.CreationTime),
			q.UserEmail,
			q.QueryText,
			strconv.FormatInt(q.TotalBytesProcessed, 10),
			strconv.FormatInt(q.TotalSlotMs, 10),
			jsonList(q.ReferencedTables),
			q.Status,
			strconv.FormatInt(q.DurationMs, 10),
		})
	}
	return t
}

// rowReader reads named cells of one row, remembering the first parse error.
type rowReader struct {
	t   Table
	row []string
	err error
}

func (r *rowReader) str(name string) string {
	i := r.t.Column(name)
	if i < 0 || i >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

func (r *rowReader) int64(name string) int64 {
	s := r.str(name)
	if s == "" || s == "None" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Float-formatted integers are accepted.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			r.fail(name, err)
			return 0
		}
		return int64(f)
	}
	return v
}

func (r *rowReader) bool(name string) bool {
	s := r.str(name)
	if s == "" || s == "None" {
		return false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		r.fail(name, err)
	}
	return v
}

func (r *rowReader) time(name string) time.Time {
	s := r.str(name)
	if s == "" || s == "None" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07:00", "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	r.fail(name, fmt.Errorf("unrecognised time %q", s))
	return time.Time{}
}

func (r *rowReader) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("column %s: %w", name, err)
	}
}

// SnapshotsFromTable rebuilds snapshots from a metadata file. Rows that cannot
// be parsed are skipped and reported in the returned multierror.
func SnapshotsFromTable(t Table) ([]types.TableSnapshot, error) {
	var (
		out  []types.TableSnapshot
		errs *multierror.Error
	)
	for n, row := range t.Rows {
		r := &rowReader{t: t, row: row}
		id, err := types.ParseTableID(r.str("table_id"))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("row %d: %w", n+1, err))
			continue
		}
		schema, err := types.ParseSchemaJSON(r.str("schema"))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("row %d: %w", n+1, err))
			continue
		}
		s := types.TableSnapshot{
			ID:                     id,
			SizeBytes:              r.int64("size_bytes"),
			RowCount:               r.int64("row_count"),
			IsPartitioned:          r.bool("is_partitioned"),
			PartitionField:         r.str("partition_field"),
			PartitionType:          r.str("partition_type"),
			RequirePartitionFilter: r.bool("require_partition_filter"),
			IsClustered:            r.bool("is_clustered"),
			ClusteringFields:       types.ParseTableList(r.str("clustering_fields")),
			LastModified:           r.time("last_modified"),
			CreationTime:           r.time("creation_time"),
			Expiration:             r.time("expiration_date"),
			ColumnCount:            int(r.int64("column_count")),
			HasNestedSchema:        r.bool("has_nested_schema"),
			HasStreamingBuffer:     r.bool("has_streaming_buffer"),
			Kind:                   types.TableKind(r.str("table_type")),
			HasLabels:              r.bool("has_labels"),
			HasDescription:         r.bool("has_description"),
			StorageBillingModel:    r.str("storage_billing_model"),
			Schema:                 schema,
		}
		if r.err != nil {
			errs = multierror.Append(errs, fmt.Errorf("row %d (%s): %w", n+1, id, r.err))
			continue
		}
		out = append(out, s)
	}
	return out, errs.ErrorOrNil()
}

// QueriesFromTable rebuilds query records from a query history file.
func QueriesFromTable(t Table) ([]types.QueryRecord, error) {
	var (
		out  []types.QueryRecord
		errs *multierror.Error
	)
	for n, row := range t.Rows {
		r := &rowReader{t: t, row: row}
		q := types.QueryRecord{
			JobID:               r.str("job_id"),
			CreationTime:        r.time("creation_time"),
			UserEmail:           r.str("user_email"),
			QueryText:           r.str("query_text"),
			TotalBytesProcessed: r.int64("total_bytes_processed"),
			TotalSlotMs:         r.int64("total_slot_ms"),
			ReferencedTables:    types.ParseTableList(r.str("referenced_tables")),
			Status:              r.str("status"),
			DurationMs:          r.int64("duration_ms"),
		}
		if r.err != nil {
			errs = multierror.Append(errs, fmt.Errorf("row %d (%s): %w", n+1, q.JobID, r.err))
			continue
		}
		out = append(out, q)
	}
	return out, errs.ErrorOrNil()
}

func jsonList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	b, err := json.Marshal(items)
	if err != nil {
		return strings.Join(items, ",")
	}
	return string(b)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// SuggestionTable flattens evaluator rows. Unknown times and day counts are
// left empty.
func SuggestionTable(rows []criteria.SuggestionRow) Table {
	t := Table{Header: SuggestionColumns}
	for _, r := range rows {
		days := ""
		if r.LastModifiedDays != nil {
			days = strconv.FormatInt(*r.LastModifiedDays, 10)
		}
		t.Rows = append(t.Rows, []string{
			r.ProjectID,
			r.DatasetID,
			r.TableID,
			r.Suggestions,
			strconv.FormatInt(r.TableSizeBytes, 10),
			strconv.FormatFloat(r.TableSizeGB, 'f', -1, 64),
			strconv.FormatInt(r.RowCount, 10),
			strconv.FormatBool(r.IsPartitioned),
			r.PartitionType,
			strconv.FormatBool(r.IsClustered),
			r.ClusteringFields,
			formatTimePtr(r.LastModified),
			days,
			strconv.FormatBool(r.HasExpiration),
			formatTimePtr(r.ExpirationDate),
			strconv.FormatInt(r.ColumnCount, 10),
			strconv.FormatBool(r.HasNestedSchema),
			r.StorageBillingModel,
			formatTimePtr(r.CreationTime),
			strconv.FormatBool(r.HasStreamingBuffer),
			r.TableType,
			strconv.FormatBool(r.HasLabels),
			strconv.FormatBool(r.HasDescription),
			formatTime(r.AnalyzedAt),
		})
	}
	return t
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
