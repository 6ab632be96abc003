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
	"sort"
	"strings"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

// MaxClusterColumns is the platform limit applied to clustering suggestions.
const MaxClusterColumns = 3

var (
	partitionTypes    = map[string]bool{"DATE": true, "TIMESTAMP": true, "DATETIME": true}
	partitionKeywords = []string{"date", "time", "day", "month", "year", "created", "modified", "updated"}

	clusterTypes    = map[string]float64{"STRING": 1, "INTEGER": 0.5, "BOOL": 0}
	clusterKeywords = []string{"id", "key", "code", "category", "type", "status", "region", "country"}

	filterTypes    = map[string]bool{"STRING": true, "INTEGER": true, "FLOAT": true, "BOOLEAN": true, "DATE": true, "TIMESTAMP": true}
	aggTypes       = map[string]bool{"INTEGER": true, "FLOAT": true, "NUMERIC": true}
	dimensionTypes = map[string]bool{"STRING": true, "DATE": true, "TIMESTAMP": true}
	epochKeywords  = []string{"time", "timestamp", "date", "epoch"}
)

type scored struct {
	name  string
	score float64
}

func containsAny(name string, keywords []string) bool {
	name = strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func rankScored(cols []scored) []string {
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].score > cols[j].score })
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// PartitionCandidates returns DATE/TIMESTAMP/DATETIME fields, those with a date-like
// name first, ties in schema order.
func PartitionCandidates(fields []types.SchemaField) []string {
	var cols []scored
	for _, f := range fields {
		if !partitionTypes[f.Type] {
			continue
		}
		s := 0.0
		if containsAny(f.Name, partitionKeywords) {
			s += 2
		}
		cols = append(cols, scored{f.Name, s})
	}
	return rankScored(cols)
}

// ClusterCandidates returns STRING/INTEGER/BOOL fields scored by type and by an
// identifier-like name, ties in schema order.
func ClusterCandidates(fields []types.SchemaField) []string {
	var cols []scored
	for _, f := range fields {
		typeScore, ok := clusterTypes[f.Type]
		if !ok {
			continue
		}
		if containsAny(f.Name, clusterKeywords) {
			typeScore += 2
		}
		cols = append(cols, scored{f.Name, typeScore})
	}
	return rankScored(cols)
}

func namesWhere(fields []types.SchemaField, keep func(types.SchemaField) bool) []string {
	var out []string
	for _, f := range fields {
		if keep(f) {
			out = append(out, f.Name)
		}
	}
	return out
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
