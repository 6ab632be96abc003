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

package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

// recordSchema is the JSON schema a parsed model object must satisfy to be used
// without falling back to field extraction.
var recordSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"recommendation"},
	"properties": map[string]interface{}{
		"recommendation_type":   map[string]interface{}{"type": "string"},
		"recommendation":        map[string]interface{}{"type": "string", "minLength": 1},
		"priority":              map[string]interface{}{"type": "string"},
		"estimated_savings_pct": map[string]interface{}{"type": []interface{}{"number", "string"}},
	},
}

var schemaLoader = gojsonschema.NewGoLoader(recordSchema)

func validate(obj map[string]interface{}) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(obj))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			errs[i] = e.String()
		}
		return fmt.Errorf("invalid recommendation: %v", errs)
	}
	return nil
}

// fields holds whatever could be recovered. Empty strings and a nil savings mean
// "not recovered".
type fields struct {
	recType        string
	recommendation string
	justification  string
	implementation string
	savings        *int
	priority       string
}

func (f fields) count() int {
	n := 0
	for _, s := range []string{f.recType, f.recommendation, f.justification, f.implementation, f.priority} {
		if s != "" {
			n++
		}
	}
	if f.savings != nil {
		n++
	}
	return n
}

// merge fills fields missing from f with values from other.
func (f fields) merge(other fields) fields {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	f.recType = pick(f.recType, other.recType)
	f.recommendation = pick(f.recommendation, other.recommendation)
	f.justification = pick(f.justification, other.justification)
	f.implementation = pick(f.implementation, other.implementation)
	f.priority = pick(f.priority, other.priority)
	if f.savings == nil {
		f.savings = other.savings
	}
	return f
}

func (f fields) build(justification string) *types.Recommendation {
	rec := &types.Recommendation{
		Type:                DefaultType,
		Recommendation:      DefaultRecommendation,
		Justification:       justification,
		Implementation:      DefaultImplementation,
		EstimatedSavingsPct: DefaultSavingsPct,
		Priority:            DefaultPriority,
	}
	if f.recType != "" {
		rec.Type = normalizeType(f.recType)
	}
	if f.recommendation != "" {
		rec.Recommendation = f.recommendation
	}
	if f.justification != "" {
		rec.Justification = f.justification
	}
	if f.implementation != "" {
		rec.Implementation = f.implementation
	}
	if f.savings != nil {
		rec.EstimatedSavingsPct = clampPct(*f.savings)
	}
	if p, ok := types.ParsePriority(f.priority); ok {
		rec.Priority = p
	}
	return rec
}

func normalizeType(s string) types.RecommendationType {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return types.RecommendationType(s)
}

func clampPct(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	}
	return n
}

var leadingInt = regexp.MustCompile(`-?\d+(\.\d+)?`)

// parseSavings accepts 15, 15.5, "15", "15%" and "10-20" (first number).
func parseSavings(v interface{}) *int {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case string:
		m := leadingInt.FindString(x)
		if m == "" {
			return nil
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil
		}
		n = f
	default:
		return nil
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	i := int(math.Round(n))
	return &i
}

// text renders a JSON value as text. Non-string values such as a list of SQL
// statements are re-encoded.
func text(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s := text(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func fromMap(obj map[string]interface{}) fields {
	f := fields{
		recType:        text(obj["recommendation_type"]),
		recommendation: text(obj["recommendation"]),
		justification:  text(obj["justification"]),
		implementation: text(obj["implementation"]),
		priority:       text(obj["priority"]),
	}
	if v, ok := obj["estimated_savings_pct"]; ok {
		f.savings = parseSavings(v)
	}
	return f
}

var (
	reType           = regexp.MustCompile(`"recommendation_type"\s*:\s*"([^"]+)"`)
	reRecommendation = regexp.MustCompile(`"recommendation"\s*:\s*"([^"]+)"`)
	reJustification  = regexp.MustCompile(`(?s)"justification"\s*:\s*"(.*?)"\s*(?:,\s*"|\})`)
	reImplementation = regexp.MustCompile(`(?s)"implementation"\s*:\s*"(.*?)"\s*(?:,\s*"|\})`)
	reSavings        = regexp.MustCompile(`"estimated_savings_pct"\s*:\s*"?(\d+)`)
	rePriority       = regexp.MustCompile(`"priority"\s*:\s*"([^"]+)"`)
)

func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// regexFields extracts each expected field independently. The free-text fields may
// span lines and end at the next field's opening quote.
func regexFields(s string) fields {
	f := fields{
		recType:        submatch(reType, s),
		recommendation: submatch(reRecommendation, s),
		justification:  submatch(reJustification, s),
		implementation: submatch(reImplementation, s),
		priority:       submatch(rePriority, s),
	}
	if m := submatch(reSavings, s); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			f.savings = &n
		}
	}
	return f
}
