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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

func TestAggregate_EvenSplit(t *testing.T) {
	records := []types.QueryRecord{
		{JobID: "j1", ReferencedTables: []string{"p.d.t1", "p.d.t2"}, TotalBytesProcessed: 1000},
		{JobID: "j2", ReferencedTables: []string{"p.d.t1", "p.d.t2"}, TotalBytesProcessed: 2000},
	}

	p := Aggregate(records, AggregateOptions{})
	assert.Equal(t, 2, p.References("p.d.t1"))
	assert.Equal(t, 2, p.References("p.d.t2"))
	assert.InDelta(t, 1500.0, p.Bytes("p.d.t1"), 1e-9)
	assert.InDelta(t, 1500.0, p.Bytes("p.d.t2"), 1e-9)
	assert.Zero(t, p.Duplicates)
}

func TestAggregate_SkipsRecordsWithoutTables(t *testing.T) {
	records := []types.QueryRecord{
		{JobID: "j1", TotalBytesProcessed: 1000},
		{JobID: "j2", ReferencedTables: []string{"", "  "}, TotalBytesProcessed: 1000},
		{JobID: "j3", ReferencedTables: []string{"p.d.t"}, TotalBytesProcessed: 10},
	}

	p := Aggregate(records, AggregateOptions{})
	assert.Equal(t, 2, p.Skipped)
	assert.Len(t, p.ReferenceCounts, 1)
	assert.InDelta(t, 10.0, p.Bytes("p.d.t"), 1e-9)
}

func TestAggregate_DuplicateReferences(t *testing.T) {
	records := []types.QueryRecord{
		{JobID: "j1", ReferencedTables: []string{"p.d.a", "p.d.a", "p.d.b"}, TotalBytesProcessed: 300},
	}

	tests := []struct {
		name      string
		opts      AggregateOptions
		wantRefsA int
		wantBytesA float64
		wantBytesB float64
	}{
		{name: "once per query", opts: AggregateOptions{}, wantRefsA: 1, wantBytesA: 150, wantBytesB: 150},
		{name: "every entry", opts: AggregateOptions{CountDuplicates: true}, wantRefsA: 2, wantBytesA: 200, wantBytesB: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Aggregate(records, tt.opts)
			assert.Equal(t, 1, p.Duplicates)
			assert.Equal(t, tt.wantRefsA, p.References("p.d.a"))
			assert.Equal(t, 1, p.References("p.d.b"))
			assert.InDelta(t, tt.wantBytesA, p.Bytes("p.d.a"), 1e-9)
			assert.InDelta(t, tt.wantBytesB, p.Bytes("p.d.b"), 1e-9)
		})
	}
}

func TestQueryPatterns_NilSafe(t *testing.T) {
	var p *QueryPatterns
	assert.Zero(t, p.References("x"))
	assert.Zero(t, p.Bytes("x"))
}
