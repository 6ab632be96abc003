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
	"fmt"
	"time"

	"github.com/cloudact/bqoptimizer/pkg/criteria"
	"github.com/cloudact/bqoptimizer/pkg/types"
)

// Default file names.
const (
	DefaultRecommendationsFile = "query_recommendations.csv"
	DefaultMetadataFile        = "table_metadata.csv"
	DefaultQueriesFile         = "query_history.csv"
)

// WriteRecommendations writes recs and returns the path written.
func WriteRecommendations(path string, recs []types.Recommendation, opts Options) (string, error) {
	return WriteTable(path, RecommendationTable(recs), opts)
}

// WriteMetadata writes snapshots and returns the path written.
func WriteMetadata(path string, snapshots []types.TableSnapshot, opts Options) (string, error) {
	return WriteTable(path, MetadataTable(snapshots, time.Now().UTC()), opts)
}

// WriteQueries writes query records and returns the path written.
func WriteQueries(path string, records []types.QueryRecord, opts Options) (string, error) {
	return WriteTable(path, QueryTable(records), opts)
}

// LoadMetadata reads a metadata file written by WriteMetadata under opts. The
// snapshots that parsed are returned even when some rows did not.
func LoadMetadata(path string, opts Options) ([]types.TableSnapshot, error) {
	t, err := ReadTable(Path(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	return SnapshotsFromTable(t)
}

// LoadQueries reads a query history file written by WriteQueries under opts.
func LoadQueries(path string, opts Options) ([]types.QueryRecord, error) {
	t, err := ReadTable(Path(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to load query history: %w", err)
	}
	return QueriesFromTable(t)
}

// SuggestionsFileName is the fallback file for suggestion rows that could not
// be inserted, stamped with the run time.
func SuggestionsFileName(now time.Time) string {
	return "optimization_suggestions_" + now.Format("20060102_150405") + ".csv"
}

// WriteSuggestions writes evaluator rows and returns the path written.
func WriteSuggestions(path string, rows []criteria.SuggestionRow, opts Options) (string, error) {
	return WriteTable(path, SuggestionTable(rows), opts)
}
