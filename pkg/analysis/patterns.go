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
	"strings"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

// AggregateOptions controls how reference lists are counted.
type AggregateOptions struct {
	// CountDuplicates counts every entry of a query's reference list, so a table listed
	// twice in one query is counted twice and takes two shares of its bytes. By default
	// a table counts once per query and bytes are split across distinct tables.
	CountDuplicates bool
}

// QueryPatterns holds per-table aggregates over a query history.
type QueryPatterns struct {
	// ReferenceCounts is the number of queries that referenced each table
	ReferenceCounts map[string]int

	// BytesProcessed is each table's share of bytes processed. Multi-table queries are
	// split evenly across their tables, which approximates rather than measures.
	BytesProcessed map[string]float64

	// Duplicates counts repeated entries seen inside single reference lists
	Duplicates int

	// Skipped counts records without referenced tables
	Skipped int
}

// References returns the reference count for a table.
func (p *QueryPatterns) References(tableID string) int {
	if p == nil {
		return 0
	}
	return p.ReferenceCounts[tableID]
}

// Bytes returns the bytes processed attributed to a table.
func (p *QueryPatterns) Bytes(tableID string) float64 {
	if p == nil {
		return 0
	}
	return p.BytesProcessed[tableID]
}

// Aggregate reduces a query history into per-table reference counts and bytes.
func Aggregate(records []types.QueryRecord, opts AggregateOptions) *QueryPatterns {
	p := &QueryPatterns{
		ReferenceCounts: make(map[string]int),
		BytesProcessed:  make(map[string]float64),
	}

	for i := range records {
		refs := make([]string, 0, len(records[i].ReferencedTables))
		seen := make(map[string]bool, len(records[i].ReferencedTables))
		for _, ref := range records[i].ReferencedTables {
			ref = strings.TrimSpace(ref)
			if ref == "" {
				continue
			}
			if seen[ref] {
				p.Duplicates++
				if !opts.CountDuplicates {
					continue
				}
			}
			seen[ref] = true
			refs = append(refs, ref)
		}
		if len(refs) == 0 {
			p.Skipped++
			continue
		}

		share := float64(records[i].TotalBytesProcessed) / float64(len(refs))
		for _, ref := range refs {
			p.ReferenceCounts[ref]++
			p.BytesProcessed[ref] += share
		}
	}
	return p
}
