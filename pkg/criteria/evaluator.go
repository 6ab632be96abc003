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

package criteria

import (
	"encoding/json"
	"time"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

// check runs one predicate, converting a panic into false.
func check(r Rule, f Facts) (hit bool) {
	defer func() {
		if recover() != nil {
			hit = false
		}
	}()
	return r.Check(f)
}

// EvaluateFacts applies every rule and returns the triggered recommendation ids in
// Order, each at most once. When nothing triggers the result is [NoSuggestions].
func EvaluateFacts(f Facts) []string {
	triggered := make(map[string]bool)
	for _, r := range rules {
		if r.Check == nil {
			continue
		}
		if check(r, f) {
			triggered[r.RecommendationID] = true
		}
	}

	ids := make([]string, 0, len(triggered))
	for _, id := range Order {
		if triggered[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []string{NoSuggestions}
	}
	return ids
}

// Evaluate applies the registry to a snapshot.
func Evaluate(s *types.TableSnapshot, now time.Time) []string {
	if s == nil {
		return []string{NoSuggestions}
	}
	return EvaluateFacts(NewFacts(s, now))
}

// Suggestions renders the triggered ids as "description (savings)." sentences.
func Suggestions(s *types.TableSnapshot, now time.Time) []string {
	ids := Evaluate(s, now)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if r, ok := ByID(id); ok {
			out = append(out, r.Text())
		}
	}
	if len(out) == 0 {
		return []string{NoSuggestionsText}
	}
	return out
}

// SuggestionRow is one row of the optimization suggestions table.
type SuggestionRow struct {
	ProjectID           string     `bigquery:"project_id"`
	DatasetID           string     `bigquery:"dataset_id"`
	TableID             string     `bigquery:"table_id"`
	Suggestions         string     `bigquery:"suggestions"`
	TableSizeBytes      int64      `bigquery:"table_size_bytes"`
	TableSizeGB         float64    `bigquery:"table_size_gb"`
	RowCount            int64      `bigquery:"row_count"`
	IsPartitioned       bool       `bigquery:"is_partitioned"`
	PartitionType       string     `bigquery:"partition_type"`
	IsClustered         bool       `bigquery:"is_clustered"`
	ClusteringFields    string     `bigquery:"clustering_fields"`
	LastModified        *time.Time `bigquery:"last_modified"`
	LastModifiedDays    *int64     `bigquery:"last_modified_days"`
	HasExpiration       bool       `bigquery:"has_expiration"`
	ExpirationDate      *time.Time `bigquery:"expiration_date"`
	ColumnCount         int64      `bigquery:"column_count"`
	HasNestedSchema     bool       `bigquery:"has_nested_schema"`
	StorageBillingModel string     `bigquery:"storage_billing_model"`
	CreationTime        *time.Time `bigquery:"creation_time"`
	HasStreamingBuffer  bool       `bigquery:"has_streaming_buffer"`
	TableType           string     `bigquery:"table_type"`
	HasLabels           bool       `bigquery:"has_labels"`
	HasDescription      bool       `bigquery:"has_description"`
	AnalyzedAt          time.Time  `bigquery:"analyzed_at"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// NewSuggestionRow flattens a snapshot and its rendered suggestions into a row.
func NewSuggestionRow(s *types.TableSnapshot, now time.Time) SuggestionRow {
	suggestions, err := json.Marshal(Suggestions(s, now))
	if err != nil {
		suggestions = []byte(`["` + NoSuggestionsText + `"]`)
	}

	row := SuggestionRow{
		ProjectID:           s.ID.Project,
		DatasetID:           s.ID.Dataset,
		TableID:             s.ID.Table,
		Suggestions:         string(suggestions),
		TableSizeBytes:      s.SizeBytes,
		TableSizeGB:         s.SizeGB(),
		RowCount:            s.RowCount,
		IsPartitioned:       s.IsPartitioned,
		PartitionType:       s.PartitionType,
		IsClustered:         s.IsClustered,
		LastModified:        timePtr(s.LastModified),
		HasExpiration:       s.HasExpiration(),
		ExpirationDate:      timePtr(s.Expiration),
		ColumnCount:         int64(s.ColumnCount),
		HasNestedSchema:     s.HasNestedSchema || types.HasNestedFields(s.Schema),
		StorageBillingModel: s.StorageBillingModel,
		CreationTime:        timePtr(s.CreationTime),
		HasStreamingBuffer:  s.HasStreamingBuffer,
		TableType:           string(s.Kind),
		HasLabels:           s.HasLabels,
		HasDescription:      s.HasDescription,
		AnalyzedAt:          now,
	}
	if row.ColumnCount == 0 {
		row.ColumnCount = int64(len(s.Schema))
	}
	if s.IsClustered && len(s.ClusteringFields) > 0 {
		if b, err := json.Marshal(s.ClusteringFields); err == nil {
			row.ClusteringFields = string(b)
		}
	}
	if days, ok := s.DaysSinceModified(now); ok {
		d := int64(days)
		row.LastModifiedDays = &d
	}
	return row
}
