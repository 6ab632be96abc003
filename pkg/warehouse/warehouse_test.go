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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/cloudact/bqoptimizer/pkg/criteria"
	"github.com/cloudact/bqoptimizer/pkg/types"
)

func TestIsNotFound(t *testing.T) {
	notFound := &googleapi.Error{Code: http.StatusNotFound}
	assert.True(t, IsNotFound(notFound))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", notFound)))
	assert.False(t, IsNotFound(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, IsNotFound(errors.New("404")))
	assert.False(t, IsNotFound(nil))

	assert.True(t, isUnavailable(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isUnavailable(&googleapi.Error{Code: http.StatusInternalServerError}))
}

func TestSnapshotFromMetadata(t *testing.T) {
	modified := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	id := types.TableID{Project: "p", Dataset: "d", Table: "events"}

	md := &bigquery.TableMetadata{
		Type:             bigquery.RegularTable,
		Description:      "events",
		Labels:           map[string]string{"team": "data"},
		NumBytes:         3 << 30,
		NumRows:          1200,
		LastModifiedTime: modified,
		CreationTime:     modified.AddDate(-1, 0, 0),
		TimePartitioning: &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: "event_date"},
		Clustering:       &bigquery.Clustering{Fields: []string{"user_id"}},
		StreamingBuffer:  &bigquery.StreamingBuffer{},
		Schema: bigquery.Schema{
			{Name: "event_date", Type: bigquery.DateFieldType},
			{Name: "user_id", Type: bigquery.StringFieldType, Required: true},
			{Name: "attrs", Type: bigquery.RecordFieldType, Repeated: true, Schema: bigquery.Schema{
				{Name: "key", Type: bigquery.StringFieldType},
			}},
		},
	}

	snap := SnapshotFromMetadata(id, md)
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, int64(3<<30), snap.SizeBytes)
	assert.Equal(t, int64(1200), snap.RowCount)
	assert.True(t, snap.IsPartitioned)
	assert.Equal(t, "DAY", snap.PartitionType)
	assert.Equal(t, "event_date", snap.PartitionField)
	assert.True(t, snap.IsClustered)
	assert.Equal(t, []string{"user_id"}, snap.ClusteringFields)
	assert.True(t, snap.HasStreamingBuffer)
	assert.True(t, snap.HasLabels)
	assert.True(t, snap.HasDescription)
	assert.False(t, snap.HasExpiration())
	assert.Equal(t, types.TableKindTable, snap.Kind)
	assert.Equal(t, 3, snap.ColumnCount)
	assert.True(t, snap.HasNestedSchema)
	assert.Equal(t, modified, snap.LastModified)

	require.Len(t, snap.Schema, 3)
	assert.Equal(t, "NULLABLE", snap.Schema[0].Mode)
	assert.Equal(t, "REQUIRED", snap.Schema[1].Mode)
	assert.Equal(t, "REPEATED", snap.Schema[2].Mode)
	assert.Equal(t, "RECORD", snap.Schema[2].Type)
	require.Len(t, snap.Schema[2].Fields, 1)
	assert.Equal(t, "key", snap.Schema[2].Fields[0].Name)
}

func TestSnapshotFromMetadata_RangeAndBare(t *testing.T) {
	id := types.TableID{Project: "p", Dataset: "d", Table: "t"}

	snap := SnapshotFromMetadata(id, &bigquery.TableMetadata{
		RangePartitioning: &bigquery.RangePartitioning{Field: "customer_id"},
	})
	assert.True(t, snap.IsPartitioned)
	assert.Equal(t, "RANGE", snap.PartitionType)
	assert.Equal(t, "customer_id", snap.PartitionField)

	snap = SnapshotFromMetadata(id, &bigquery.TableMetadata{Clustering: &bigquery.Clustering{}})
	assert.False(t, snap.IsPartitioned)
	assert.False(t, snap.IsClustered)
	assert.False(t, snap.HasNestedSchema)
	assert.Zero(t, snap.ColumnCount)
	assert.Nil(t, snap.Schema)
}

func TestJobsQuery(t *testing.T) {
	tests := []struct {
		name      string
		region    string
		limit     int
		wantFrom  string
		wantLimit string
		wantErr   bool
	}{
		{name: "default region", region: "", limit: 0, wantFrom: "`region-us`.INFORMATION_SCHEMA.JOBS", wantLimit: "LIMIT 1000"},
		{name: "lower-cased", region: "EU", limit: 50, wantFrom: "`region-eu`.INFORMATION_SCHEMA.JOBS", wantLimit: "LIMIT 50"},
		{name: "limit capped", region: "us-central1", limit: 5000, wantFrom: "`region-us-central1`", wantLimit: "LIMIT 1000"},
		{name: "injection rejected", region: "us`; DROP TABLE x; --", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := JobsQuery(tt.region, tt.limit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, sql, tt.wantFrom)
			assert.True(t, strings.HasSuffix(sql, tt.wantLimit))
			assert.Contains(t, sql, "NOT LIKE '%INFORMATION_SCHEMA%'")
			assert.Contains(t, sql, "ORDER BY\n  creation_time DESC")
			assert.Contains(t, sql, "@start_time")
			assert.Contains(t, sql, "@project_id")
		})
	}
}

func TestJobRowRecord(t *testing.T) {
	created := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	row := jobRow{
		JobID:               "job_1",
		CreationTime:        created,
		Query:               "SELECT 1",
		TotalBytesProcessed: bigquery.NullInt64{Int64: 42, Valid: true},
		DurationMs:          bigquery.NullInt64{Int64: 7, Valid: true},
		Status:              bigquery.NullString{StringVal: "DONE", Valid: true},
		ReferencedTables:    []string{"p.d.t"},
	}
	rec := row.record()
	assert.Equal(t, "job_1", rec.JobID)
	assert.Equal(t, created, rec.CreationTime)
	assert.Equal(t, int64(42), rec.TotalBytesProcessed)
	assert.Equal(t, int64(7), rec.DurationMs)
	assert.Zero(t, rec.TotalSlotMs)
	assert.Empty(t, rec.UserEmail)
	assert.Equal(t, "DONE", rec.Status)
	assert.Equal(t, []string{"p.d.t"}, rec.ReferencedTables)
}

func TestSink(t *testing.T) {
	_, err := NewSink(nil, SinkConfig{})
	assert.ErrorIs(t, err, ErrProjectRequired)

	s, err := NewSink(nil, SinkConfig{Project: "out"})
	require.NoError(t, err)
	assert.Equal(t, "out.optimization.table_suggestions", s.TableName())

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	md := s.TableMetadata(now)
	require.NotNil(t, md.TimePartitioning)
	assert.Equal(t, bigquery.DayPartitioningType, md.TimePartitioning.Type)
	assert.Equal(t, "analyzed_at", md.TimePartitioning.Field)
	assert.Equal(t, now.AddDate(0, 0, 365), md.ExpirationTime)
	assert.Equal(t, SuggestionSchema, md.Schema)

	s, err = NewSink(nil, SinkConfig{Project: "out", RetentionDays: -1})
	require.NoError(t, err)
	assert.True(t, s.TableMetadata(now).ExpirationTime.IsZero())
}

func TestSuggestionSchemaCoversRow(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	snap := &types.TableSnapshot{
		ID:           types.TableID{Project: "p", Dataset: "d", Table: "t"},
		SizeBytes:    1 << 30,
		LastModified: now.AddDate(0, 0, -10),
	}
	values, insertID, err := suggestionSaver{criteria.NewSuggestionRow(snap, now)}.Save()
	require.NoError(t, err)
	assert.Equal(t, bigquery.NoDedupeID, insertID)

	assert.Len(t, values, len(SuggestionSchema))
	for _, f := range SuggestionSchema {
		_, ok := values[f.Name]
		assert.True(t, ok, "missing column %s", f.Name)
	}
	assert.Nil(t, values["expiration_date"])
	assert.Nil(t, values["partition_type"])
	assert.Equal(t, int64(10), values["last_modified_days"])
	assert.Equal(t, now, values["analyzed_at"])
}

func TestOrganizationFilter(t *testing.T) {
	assert.Equal(t, "", OrganizationFilter("", ""))
	assert.Equal(t, "parent.type:organization parent.id:123", OrganizationFilter("123", " "))
	assert.Equal(t, "parent.type:organization parent.id:123 labels.env:prod",
		OrganizationFilter("123", "labels.env:prod"))
	assert.Equal(t, "name:web*", OrganizationFilter("", "name:web*"))
}

func fakeResourceManager(t *testing.T, status int, pages ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
			return
		}
		page := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			fmt.Sscanf(tok, "%d", &page)
		}
		w.Header().Set("Content-Type", "application/json")
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(pages[page]), &body))
		if page+1 < len(pages) {
			body["nextPageToken"] = fmt.Sprint(page + 1)
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProjectLister(t *testing.T) {
	srv := fakeResourceManager(t, http.StatusOK,
		`{"projects":[{"projectId":"a","lifecycleState":"ACTIVE"},{"projectId":"old","lifecycleState":"DELETE_REQUESTED"}]}`,
		`{"projects":[{"projectId":"b","lifecycleState":"ACTIVE"}]}`,
	)
	l := NewProjectLister([]string{"manual"}, nil, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())

	ids, err := l.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestProjectLister_Fallback(t *testing.T) {
	srv := fakeResourceManager(t, http.StatusForbidden)

	l := NewProjectLister([]string{"x", " y ", "x", ""}, nil, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	ids, err := l.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids)

	l = NewProjectLister(nil, nil, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	_, err = l.List(context.Background(), "")
	assert.Error(t, err)
}

func TestProjectLister_EmptyResultUsesManual(t *testing.T) {
	srv := fakeResourceManager(t, http.StatusOK, `{"projects":[]}`)
	l := NewProjectLister([]string{"m"}, nil, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())

	ids, err := l.List(context.Background(), "labels.env:none")
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, ids)
}

func TestStaticProjects(t *testing.T) {
	ids, err := StaticProjects{"a", " b ", "a", ""}.List(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, err = StaticProjects{}.List(context.Background(), "")
	assert.Error(t, err)
}
