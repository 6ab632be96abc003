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

	"github.com/cloudact/bqoptimizer/pkg/types"
)

// Rank orders recommendations by priority, then estimated savings, both descending.
// Equal keys keep their input order. A positive limit truncates the result. The
// input slice is not modified.
func Rank(recs []types.Recommendation, limit int) []types.Recommendation {
	out := make([]types.Recommendation, len(recs))
	copy(out, recs)

	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := out[i].Priority.Weight(), out[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return out[i].EstimatedSavingsPct > out[j].EstimatedSavingsPct
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
