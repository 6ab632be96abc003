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

	"cloud.google.com/go/bigquery"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

// MetadataSource lists every table of a project with its metadata.
type MetadataSource struct {
	client *bigquery.Client
	logger *zap.Logger
}

// NewMetadataSource creates a source reading through client.
func NewMetadataSource(client *bigquery.Client, logger *zap.Logger) *MetadataSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataSource{client: client, logger: logger}
}

// Collect returns snapshots of all readable tables in projectID. Datasets and
// tables that cannot be read are logged and skipped; their errors are returned
// together as a multierror next to the snapshots that were collected.
func (m *MetadataSource) Collect(ctx context.Context, projectID string) ([]types.TableSnapshot, error) {
	if projectID == "" {
		return nil, ErrProjectRequired
	}
	logger := m.logger.With(zap.String("project_id", projectID))

	var (
		snapshots []types.TableSnapshot
		errs      *multierror.Error
	)

	datasets := m.client.Datasets(ctx)
	datasets.ProjectID = projectID
	for {
		ds, err := datasets.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if isUnavailable(err) {
				logger.Warn("Cannot list datasets", zap.Error(err))
				break
			}
			return snapshots, fmt.Errorf("failed to list datasets of %s: %w", projectID, err)
		}

		billing := ""
		if md, err := ds.Metadata(ctx); err == nil {
			billing = md.StorageBillingModel
		} else {
			logger.Debug("Dataset metadata unavailable", zap.String("dataset_id", ds.DatasetID), zap.Error(err))
		}

		got, err := m.collectDataset(ctx, ds, billing)
		snapshots = append(snapshots, got...)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	logger.Info("Collected table metadata", zap.Int("tables", len(snapshots)))
	return snapshots, errs.ErrorOrNil()
}

func (m *MetadataSource) collectDataset(ctx context.Context, ds *bigquery.Dataset, billing string) ([]types.TableSnapshot, error) {
	var (
		out  []types.TableSnapshot
		errs *multierror.Error
	)
	tables := ds.Tables(ctx)
	for {
		t, err := tables.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			m.logger.Warn("Cannot list tables",
				zap.String("dataset_id", ds.ProjectID+"."+ds.DatasetID),
				zap.Error(err))
			return out, multierror.Append(errs, fmt.Errorf("dataset %s.%s: %w", ds.ProjectID, ds.DatasetID, err))
		}

		id := types.TableID{Project: t.ProjectID, Dataset: t.DatasetID, Table: t.TableID}
		md, err := t.Metadata(ctx)
		if err != nil {
			m.logger.Warn("Cannot read table metadata", zap.String("table_id", id.String()), zap.Error(err))
			errs = multierror.Append(errs, fmt.Errorf("table %s: %w", id, err))
			continue
		}

		snap := SnapshotFromMetadata(id, md)
		if snap.StorageBillingModel == "" {
			snap.StorageBillingModel = billing
		}
		out = append(out, snap)
		m.logger.Debug("Processed table",
			zap.String("table_id", id.String()),
			zap.Int64("size_bytes", snap.SizeBytes),
			zap.Int64("rows", snap.RowCount))
	}
	return out, errs.ErrorOrNil()
}

// SnapshotFromMetadata converts BigQuery table metadata into a snapshot.
func SnapshotFromMetadata(id types.TableID, md *bigquery.TableMetadata) types.TableSnapshot {
	snap := types.TableSnapshot{
		ID:                     id,
		SizeBytes:              md.NumBytes,
		RowCount:               int64(md.NumRows),
		RequirePartitionFilter: md.RequirePartitionFilter,
		LastModified:           md.LastModifiedTime,
		CreationTime:           md.CreationTime,
		Expiration:             md.ExpirationTime,
		HasStreamingBuffer:     md.StreamingBuffer != nil,
		Kind:                   types.TableKind(md.Type),
		HasLabels:              len(md.Labels) > 0,
		HasDescription:         md.Description != "",
		Schema:                 convertSchema(md.Schema),
	}

	switch {
	case md.TimePartitioning != nil:
		snap.IsPartitioned = true
		snap.PartitionType = string(md.TimePartitioning.Type)
		snap.PartitionField = md.TimePartitioning.Field
	case md.RangePartitioning != nil:
		snap.IsPartitioned = true
		snap.PartitionType = "RANGE"
		snap.PartitionField = md.RangePartitioning.Field
	}

	if md.Clustering != nil && len(md.Clustering.Fields) > 0 {
		snap.IsClustered = true
		snap.ClusteringFields = append([]string(nil), md.Clustering.Fields...)
	}

	snap.ColumnCount = len(snap.Schema)
	snap.HasNestedSchema = types.HasNestedFields(snap.Schema)
	return snap
}

func convertSchema(schema bigquery.Schema) []types.SchemaField {
	if len(schema) == 0 {
		return nil
	}
	out := make([]types.SchemaField, 0, len(schema))
	for _, f := range schema {
		if f == nil {
			continue
		}
		mode := "NULLABLE"
		switch {
		case f.Repeated:
			mode = "REPEATED"
		case f.Required:
			mode = "REQUIRED"
		}
		out = append(out, types.SchemaField{
			Name:        f.Name,
			Type:        string(f.Type),
			Mode:        mode,
			Description: f.Description,
			Fields:      convertSchema(f.Schema),
		})
	}
	return out
}
