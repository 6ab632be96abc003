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
	"io"
	"sort"

	"github.com/cloudact/bqoptimizer/pkg/analysis"
	"github.com/cloudact/bqoptimizer/pkg/types"
)

const (
	summaryTables       = 10
	summaryPerTable     = 3
	summaryTopOverall   = 5
	summaryBannerFormat = "\n===== BigQuery Optimization Recommendations =====\n\n"
)

// Summary prints counts per type, the tables with most recommendations and
// the top recommendations overall. path names where the full list was saved.
func Summary(w io.Writer, recs []types.Recommendation, path string) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No recommendations generated.")
		return
	}

	var (
		typeOrder  []types.RecommendationType
		byType     = make(map[types.RecommendationType]int)
		tableOrder []string
		byTable    = make(map[string][]types.Recommendation)
	)
	for _, r := range recs {
		if _, ok := byType[r.Type]; !ok {
			typeOrder = append(typeOrder, r.Type)
		}
		byType[r.Type]++
		if _, ok := byTable[r.TableID]; !ok {
			tableOrder = append(tableOrder, r.TableID)
		}
		byTable[r.TableID] = append(byTable[r.TableID], r)
	}

	fmt.Fprint(w, summaryBannerFormat)
	fmt.Fprintf(w, "Total recommendations: %d\n", len(recs))

	fmt.Fprintln(w, "\nRecommendations by type:")
	for _, t := range typeOrder {
		fmt.Fprintf(w, "  %s: %d\n", t, byType[t])
	}

	sort.SliceStable(tableOrder, func(i, j int) bool {
		return len(byTable[tableOrder[i]]) > len(byTable[tableOrder[j]])
	})
	fmt.Fprintf(w, "\nRecommendations by table (top %d):\n", summaryTables)
	for i, id := range tableOrder {
		if i >= summaryTables {
			break
		}
		tableRecs := byTable[id]
		fmt.Fprintf(w, "\n%s: %d recommendations\n", id, len(tableRecs))
		for j, r := range tableRecs {
			if j >= summaryPerTable {
				fmt.Fprintf(w, "  - ... and %d more recommendations\n", len(tableRecs)-summaryPerTable)
				break
			}
			fmt.Fprintf(w, "  - %s: %s (Est. savings: %d%%, Priority: %s)\n",
				r.Type, r.Recommendation, r.EstimatedSavingsPct, r.Priority)
		}
	}

	fmt.Fprintf(w, "\nTop %d highest-priority recommendations:\n", summaryTopOverall)
	for i, r := range analysis.Rank(recs, summaryTopOverall) {
		fmt.Fprintf(w, "\n%d. %s: %s\n", i+1, r.Type, r.Recommendation)
		fmt.Fprintf(w, "   Table: %s\n", r.TableID)
		fmt.Fprintf(w, "   Justification: %s\n", r.Justification)
		fmt.Fprintf(w, "   Estimated savings: %d%%\n", r.EstimatedSavingsPct)
		fmt.Fprintf(w, "   Priority: %s\n", r.Priority)
	}

	if path != "" {
		fmt.Fprintf(w, "\nFull recommendations saved to %s\n", path)
	}
}
