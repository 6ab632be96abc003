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

// Package extract recovers a Recommendation from free-form model output.
//
// Model output frequently wraps the JSON object in prose or markdown fences, embeds raw
// control characters, double-escapes quotes or stops before the closing brace. Extract
// walks a fixed ladder of repairs and always returns a usable record:
//
//  1. locate the outermost braces (no opening brace: placeholder)
//  2. parse the object and validate it against the record schema
//  3. strip control characters and retry
//  4. escape raw newlines inside string literals, undo double escaping, close braces
//  5. regex extraction of individual fields, accepted when two or more are found
//  6. generic placeholder
package extract

import (
	"encoding/json"
	"strings"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

// Defaults used for fields the model did not provide.
const (
	DefaultType           = types.TypeQueryOptimization
	DefaultRecommendation = "Optimize query structure"
	DefaultJustification  = "Extracted from LLM response"
	DefaultImplementation = "See detailed recommendations"
	DefaultSavingsPct     = 10
	DefaultPriority       = types.PriorityMedium
)

// Placeholder field values returned when nothing could be recovered.
const (
	PlaceholderJustification  = "JSON parsing failed, but query analysis was attempted"
	PlaceholderImplementation = "Review query for optimization opportunities"
	PlaceholderSavingsPct     = 5
)

// MinRecoveredFields is how many fields regex extraction must recover.
const MinRecoveredFields = 2

// Method reports which rung of the ladder produced the result.
type Method string

const (
	MethodJSON        Method = "json"
	MethodCleaned     Method = "cleaned"
	MethodRepaired    Method = "repaired"
	MethodFields      Method = "fields"
	MethodPlaceholder Method = "placeholder"
)

// Result is a recovered recommendation and how it was obtained.
type Result struct {
	Recommendation *types.Recommendation
	Method         Method

	// Recovered counts the fields taken from the model output
	Recovered int
}

// Extract recovers a recommendation from raw and attributes it to the first
// referenced table, or types.UnknownTableID. It never returns nil.
func Extract(raw string, referencedTables []string) *types.Recommendation {
	return ExtractResult(raw, referencedTables).Recommendation
}

// ExtractResult is Extract with diagnostics.
func ExtractResult(raw string, referencedTables []string) (res Result) {
	tableID := types.UnknownTableID
	for _, t := range referencedTables {
		if t = strings.TrimSpace(t); t != "" {
			tableID = t
			break
		}
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{Recommendation: placeholder(), Method: MethodPlaceholder}
		}
		res.Recommendation.TableID = tableID
		res.Recommendation.Source = types.SourceLLM
	}()

	object, ok := locateObject(stripFences(raw))
	if !ok {
		return Result{Recommendation: placeholder(), Method: MethodPlaceholder}
	}

	var partial fields
	attempts := []struct {
		method Method
		text   func() string
	}{
		{MethodJSON, func() string { return object }},
		{MethodCleaned, func() string { return stripControl(object) }},
		{MethodRepaired, func() string { return repair(stripControl(object)) }},
	}
	for _, a := range attempts {
		f, valid, err := parseObject(a.text())
		if err != nil {
			continue
		}
		if valid {
			return Result{Recommendation: f.build(DefaultJustification), Method: a.method, Recovered: f.count()}
		}
		partial = partial.merge(f)
	}

	found := partial.merge(regexFields(object))
	if found.count() >= MinRecoveredFields {
		return Result{Recommendation: found.build(DefaultJustification), Method: MethodFields, Recovered: found.count()}
	}
	return Result{Recommendation: placeholder(), Method: MethodPlaceholder}
}

func placeholder() *types.Recommendation {
	return &types.Recommendation{
		Type:                DefaultType,
		Recommendation:      DefaultRecommendation,
		Justification:       PlaceholderJustification,
		Implementation:      PlaceholderImplementation,
		EstimatedSavingsPct: PlaceholderSavingsPct,
		Priority:            DefaultPriority,
	}
}

// stripFences removes markdown code fences and a leading language marker.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// locateObject returns the text from the first '{' to the last '}'. An opening brace
// without a closing one returns the tail so repair can close it.
func locateObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return s[start:], true
	}
	return s[start : end+1], true
}

// stripControl drops bytes below 0x20 and DEL, keeping newlines.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if (r < 0x20 && r != '\n') || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// repair escapes raw newlines inside string literals, undoes a layer of quote
// escaping when the object was double-encoded, and balances braces.
func repair(s string) string {
	if strings.HasPrefix(s, `{\"`) || strings.Contains(s, `:\"`) || strings.Contains(s, `: \"`) {
		s = strings.ReplaceAll(s, `\\`, "\x00")
		s = strings.ReplaceAll(s, `\"`, `"`)
		s = strings.ReplaceAll(s, "\x00", `\`)
	}

	var b strings.Builder
	inString, escaped := false, false
	depth := 0
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case inString && r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case inString && r == '\n':
			b.WriteString(`\n`)
			continue
		case !inString && r == '{':
			depth++
		case !inString && r == '}':
			depth--
		}
		b.WriteRune(r)
	}
	if inString {
		b.WriteByte('"')
	}
	for ; depth > 0; depth-- {
		b.WriteByte('}')
	}
	return b.String()
}

// parseObject decodes text into fields. valid reports whether the object satisfied
// the record schema.
func parseObject(text string) (fields, bool, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return fields{}, false, err
	}
	f := fromMap(obj)
	return f, validate(obj) == nil, nil
}
