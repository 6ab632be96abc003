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

package warehouse

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/pkg/criteria"
)

const (
	DefaultSinkDataset   = "optimization"
	DefaultSinkTable     = "table_suggestions"
	DefaultSinkLocation  = "US"
	DefaultRetentionDays = 365

	sinkDescription = "BigQuery table optimization suggestions and metadata"
	insertBatchSize = 500
)

// SuggestionSchema is the schema of the suggestions table.
var SuggestionSchema = bigquery.Schema{
	{Name: "project_id", Type: bigquery.StringFieldType, Required: true, Description: "The project ID"},
	{Name: "dataset_id", Type: bigquery.StringFieldType, Required: true, Description: "The dataset ID"},
	{Name: "table_id", Type: bigquery.StringFieldType, Required: true, Description: "The table ID"},
	{Name: "suggestions", Type: bigquery.StringFieldType, Required: true, Description: "JSON array of optimization suggestions"},
	{Name: "table_size_bytes", Type: bigquery.IntegerFieldType, Description: "Size of the table in bytes"},
	{Name: "table_size_gb", Type: bigquery.FloatFieldType, Description: "Size of the table in GB"},
	{Name: "row_count", Type: bigquery.IntegerFieldType, Description: "Number of rows in the table"},
	{Name: "is_partitioned", Type: bigquery.BooleanFieldType, Description: "Whether the table is partitioned"},
	{Name: "partition_type", Type: bigquery.StringFieldType, Description: "Type of partitioning"},
	{Name: "is_clustered", Type: bigquery.BooleanFieldType, Description: "Whether the table is clustered"},
	{Name: "clustering_fields", Type: bigquery.StringFieldType, Description: "Fields used for clustering"},
	{Name: "last_modified", Type: bigquery.TimestampFieldType, Description: "When the table was last modified"},
	{Name: "last_modified_days", Type: bigquery.IntegerFieldType, Description: "Days since the table was last modified"},
	{Name: "has_expiration", Type: bigquery.BooleanFieldType, Description: "Whether the table has an expiration date"},
	{Name: "expiration_date", Type: bigquery.TimestampFieldType, Description: "When the table will expire"},
	{Name: "column_count", Type: bigquery.IntegerFieldType, Description: "Number of columns in the table"},
	{Name: "has_nested_schema", Type: bigquery.BooleanFieldType, Description: "Whether the table has nested fields"},
	{Name: "storage_billing_model", Type: bigquery.StringFieldType, Description: "Storage billing model"},
	{Name: "creation_time", Type: bigquery.TimestampFieldType, Description: "When the table was created"},
	{Name: "has_streaming_buffer", Type: bigquery.BooleanFieldType, Description: "Whether the table has a streaming buffer"},
	{Name: "table_type", Type: bigquery.StringFieldType, Description: "Type of table"},
	{Name: "has_labels", Type: bigquery.BooleanFieldType, Description: "Whether the table has labels"},
	{Name: "has_description", Type: bigquery.BooleanFieldType, Description: "Whether the table has a description"},
	{Name: "analyzed_at", Type: bigquery.TimestampFieldType, Required: true, Description: "When this analysis was performed"},
}

// SinkConfig locates the suggestions table.
type SinkConfig struct {
	Project       string
	Dataset       string // Default: optimization
	Table         string // Default: table_suggestions
	Location      string // Default: US
	RetentionDays int    // Table expiration. Default: 365

	Logger *zap.Logger
}

// Sink writes suggestion rows to a day-partitioned BigQuery table.
type Sink struct {
	client *bigquery.Client
	cfg    SinkConfig
	logger *zap.Logger
}

// NewSink creates a sink writing through client.
func NewSink(client *bigquery.Client, cfg SinkConfig) (*Sink, error) {
	if cfg.Project == "" {
		return nil, ErrProjectRequired
	}
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultSinkDataset
	}
	if cfg.Table == "" {
		cfg.Table = DefaultSinkTable
	}
	if cfg.Location == "" {
		cfg.Location = DefaultSinkLocation
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Sink{client: client, cfg: cfg, logger: cfg.Logger}, nil
}

// TableName returns the dotted id of the sink table.
func (s *Sink) TableName() string {
	return s.cfg.Project + "." + s.cfg.Dataset + "." + s.cfg.Table
}

// TableMetadata returns the metadata a new sink table is created with.
func (s *Sink) TableMetadata(now time.Time) *bigquery.TableMetadata {
	md := &bigquery.TableMetadata{
		Description: sinkDescription,
		Schema:      SuggestionSchema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "analyzed_at",
		},
	}
	if s.cfg.RetentionDays > 0 {
		md.ExpirationTime = now.AddDate(0, 0, s.cfg.RetentionDays)
	}
	return md
}

// EnsureTable creates the dataset and table when they do not exist.
func (s *Sink) EnsureTable(ctx context.Context) error {
	ds := s.client.DatasetInProject(s.cfg.Project, s.cfg.Dataset)
	if _, err := ds.Metadata(ctx); err != nil {
		if !IsNotFound(err) {
			return fmt.Errorf("failed to read dataset %s.%s: %w", s.cfg.Project, s.cfg.Dataset, err)
		}
		s.logger.Info("Creating dataset", zap.String("dataset_id", s.cfg.Dataset), zap.String("location", s.cfg.Location))
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: s.cfg.Location}); err != nil {
			return fmt.Errorf("failed to create dataset %s.%s: %w", s.cfg.Project, s.cfg.Dataset, err)
		}
	}

	t := ds.Table(s.cfg.Table)
	if _, err := t.Metadata(ctx); err != nil {
		if !IsNotFound(err) {
			return fmt.Errorf("failed to read table %s: %w", s.TableName(), err)
		}
		s.logger.Info("Creating table", zap.String("table_id", s.TableName()))
		if err := t.Create(ctx, s.TableMetadata(time.Now().UTC())); err != nil {
			return fmt.Errorf("failed to create table %s: %w", s.TableName(), err)
		}
	}
	return nil
}

// Insert streams rows into the table in batches.
func (s *Sink) Insert(ctx context.Context, rows []criteria.SuggestionRow) error {
	if len(rows) == 0 {
		s.logger.Info("No rows to insert")
		return nil
	}
	inserter := s.client.DatasetInProject(s.cfg.Project, s.cfg.Dataset).Table(s.cfg.Table).Inserter()

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		savers := make([]bigquery.ValueSaver, 0, end-start)
		for _, r := range rows[start:end] {
			savers = append(savers, suggestionSaver{r})
		}
		if err := inserter.Put(ctx, savers); err != nil {
			return fmt.Errorf("failed to insert rows %d-%d into %s: %w", start, end, s.TableName(), err)
		}
	}
	s.logger.Info("Inserted suggestion rows", zap.Int("rows", len(rows)), zap.String("table_id", s.TableName()))
	return nil
}

// suggestionSaver maps a row to column values, writing NULL for unknown times.
type suggestionSaver struct {
	row criteria.SuggestionRow
}

var _ bigquery.ValueSaver = suggestionSaver{}

func (s suggestionSaver) Save() (map[string]bigquery.Value, string, error) {
	r := s.row
	return map[string]bigquery.Value{
		"project_id":            r.ProjectID,
		"dataset_id":            r.DatasetID,
		"table_id":              r.TableID,
		"suggestions":           r.Suggestions,
		"table_size_bytes":      r.TableSizeBytes,
		"table_size_gb":         r.TableSizeGB,
		"row_count":             r.RowCount,
		"is_partitioned":        r.IsPartitioned,
		"partition_type":        nullString(r.PartitionType),
		"is_clustered":          r.IsClustered,
		"clustering_fields":     nullString(r.ClusteringFields),
		"last_modified":         nullTime(r.LastModified),
		"last_modified_days":    nullInt(r.LastModifiedDays),
		"has_expiration":        r.HasExpiration,
		"expiration_date":       nullTime(r.ExpirationDate),
		"column_count":          r.ColumnCount,
		"has_nested_schema":     r.HasNestedSchema,
		"storage_billing_model": nullString(r.StorageBillingModel),
		"creation_time":         nullTime(r.CreationTime),
		"has_streaming_buffer":  r.HasStreamingBuffer,
		"table_type":            nullString(r.TableType),
		"has_labels":            r.HasLabels,
		"has_description":       r.HasDescription,
		"analyzed_at":           r.AnalyzedAt,
	}, bigquery.NoDedupeID, nil
}

func nullString(s string) bigquery.Value {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) bigquery.Value {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(v *int64) bigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}
