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

package schemaindex

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cloudact/bqoptimizer/pkg/types"
)

// featuresPerToken is how many vector slots each hashed token touches.
const featuresPerToken = 2

// CanonicalText renders a snapshot deterministically: id, size, rows, flags,
// then one line per schema field with nested fields indented below their parent.
func CanonicalText(s *types.TableSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", s.ID)
	fmt.Fprintf(&b, "Size: %.2f GB\n", s.SizeGB())
	fmt.Fprintf(&b, "Rows: %d\n", s.RowCount)
	fmt.Fprintf(&b, "Partitioned: %t\n", s.IsPartitioned)
	fmt.Fprintf(&b, "Clustered: %t\n", s.IsClustered)
	b.WriteString("\nSchema:\n")
	writeFields(&b, s.Schema, 0)
	return b.String()
}

func writeFields(b *strings.Builder, fields []types.SchemaField, depth int) {
	for _, f := range fields {
		mode := f.Mode
		if mode == "" {
			mode = "NULLABLE"
		}
		fmt.Fprintf(b, "%s- %s (%s, %s)\n", strings.Repeat("  ", depth), f.Name, f.Type, mode)
		writeFields(b, f.Fields, depth+1)
	}
}

// HashEmbedding derives a unit vector of the given dimension from text.
//
// Each non-empty line and each word is hashed with SHA-256; the digest picks
// featuresPerToken slots (cyclically, modulo dimension) and a sign for each.
// Documents that share most lines land close together, so near-identical
// schemas score higher than unrelated ones. The result is deterministic but
// carries no learned semantics.
func HashEmbedding(text string, dimension int) []float32 {
	if dimension <= 0 {
		return nil
	}
	acc := make([]float64, dimension)

	add := func(kind, token string) {
		sum := sha256.Sum256([]byte(kind + "\x00" + token))
		for i := 0; i < featuresPerToken; i++ {
			off := (i * 8) % len(sum)
			slot := binary.BigEndian.Uint32(sum[off:off+4]) % uint32(dimension)
			// Magnitude in (0.5, 1], sign from the next byte.
			mag := 0.5 + float64(sum[off+4])/510.0
			if sum[off+5]&1 == 1 {
				mag = -mag
			}
			acc[slot] += mag
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		add("line", line)
	}
	for _, word := range strings.FieldsFunc(strings.ToLower(text), isWordBreak) {
		add("word", word)
	}

	return normalize(acc)
}

func isWordBreak(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

func normalize(acc []float64) []float32 {
	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	out := make([]float32, len(acc))
	if norm == 0 {
		// Empty text still yields a unit vector.
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}
