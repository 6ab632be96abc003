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
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

const (
	// DefaultRegion is the INFORMATION_SCHEMA region qualifier
	DefaultRegion = "us"

	// QueryLogLimit caps the rows read per collection pass
	QueryLogLimit = 1000

	jobPrefix = "bqoptimizer_querylog_"
)

var regionPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

const jobsQuery = `SELECT
  job_id,
  creation_time,
  user_email,
  query,
  total_bytes_processed,
  total_slot_ms,
  state AS status,
  TIMESTAMP_DIFF(end_time, start_time, MILLISECOND) AS duration_ms,
  (SELECT ARRAY_AGG(DISTINCT CONCAT(t.project_id, '.', t.dataset_id, '.', t.table_id))
   FROM UNNEST(referenced_tables) AS t) AS referenced_tables
FROM
  ` + "`region-{region}`" + `.INFORMATION_SCHEMA.JOBS
WHERE
  creation_time >= @start_time
  AND project_id = @project_id
  AND job_type = 'QUERY'
  AND query NOT LIKE '%INFORMATION_SCHEMA%'
  AND query IS NOT NULL
ORDER BY
  creation_time DESC
LIMIT {limit}`

// jobRow is one row of the jobs query.
type jobRow struct {
	JobID               string              `bigquery:"job_id"`
	CreationTime        time.Time           `bigquery:"creation_time"`
	UserEmail           bigquery.NullString `bigquery:"user_email"`
	Query               string              `bigquery:"query"`
	TotalBytesProcessed bigquery.NullInt64  `bigquery:"total_bytes_processed"`
	TotalSlotMs         bigquery.NullInt64  `bigquery:"total_slot_ms"`
	Status              bigquery.NullString `bigquery:"status"`
	DurationMs          bigquery.NullInt64  `bigquery:"duration_ms"`
	ReferencedTables    []string            `bigquery:"referenced_tables"`
}

func (r jobRow) record() types.QueryRecord {
	return types.QueryRecord{
		JobID:               r.JobID,
		CreationTime:        r.CreationTime,
		UserEmail:           r.UserEmail.StringVal,
		QueryText:           r.Query,
		TotalBytesProcessed: r.TotalBytesProcessed.Int64,
		TotalSlotMs:         r.TotalSlotMs.Int64,
		ReferencedTables:    r.ReferencedTables,
		Status:              r.Status.StringVal,
		DurationMs:          r.DurationMs.Int64,
	}
}

// QueryLogSource reads recent query jobs from INFORMATION_SCHEMA.JOBS.
type QueryLogSource struct {
	client *bigquery.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewQueryLogSource creates a source reading through client.
func NewQueryLogSource(client *bigquery.Client, logger *zap.Logger) *QueryLogSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryLogSource{client: client, logger: logger, now: time.Now}
}

// JobsQuery renders the history query for region. The region is part of an
// identifier and cannot be a query parameter, so it is validated instead.
func JobsQuery(region string, limit int) (string, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	if !regionPattern.MatchString(region) {
		return "", fmt.Errorf("invalid region %q", region)
	}
	if limit <= 0 || limit > QueryLogLimit {
		limit = QueryLogLimit
	}
	return strings.NewReplacer(
		"{region}", region,
		"{limit}", fmt.Sprint(limit),
	).Replace(jobsQuery), nil
}

// Collect returns up to QueryLogLimit QUERY jobs of projectID created in the last
// lookbackDays, newest first.
func (s *QueryLogSource) Collect(ctx context.Context, projectID, region string, lookbackDays int) ([]types.QueryRecord, error) {
	if projectID == "" {
		return nil, ErrProjectRequired
	}
	sql, err := JobsQuery(region, QueryLogLimit)
	if err != nil {
		return nil, err
	}
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	start := s.now().UTC().AddDate(0, 0, -lookbackDays).Truncate(24 * time.Hour)

	q := s.client.Query(sql)
	q.JobIDConfig = bigquery.JobIDConfig{JobID: jobPrefix, AddJobIDSuffix: true}
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_time", Value: start},
		{Name: "project_id", Value: projectID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history of %s: %w", projectID, err)
	}

	var records []types.QueryRecord
	for {
		var row jobRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return records, fmt.Errorf("failed to read job history of %s: %w", projectID, err)
		}
		records = append(records, row.record())
	}

	s.logger.Info("Collected query history",
		zap.String("project_id", projectID),
		zap.Int("lookback_days", lookbackDays),
		zap.Int("queries", len(records)))
	return records, nil
}
