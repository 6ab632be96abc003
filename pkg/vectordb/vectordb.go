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

// Package vectordb defines the vector store used by the schema similarity index
// and an in-memory implementation. Remote and on-disk backends live in the
// qdrant and sqlite subpackages.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrNotFound is returned by Get when no point has the id.
	ErrNotFound = errors.New("point not found")

	// ErrDimensionMismatch is returned when a vector does not match the collection.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNoCollection is returned when the collection has not been ensured.
	ErrNoCollection = errors.New("collection does not exist")
)

// Point is one stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// ScoredPoint is a search hit. Higher scores are more similar.
type ScoredPoint struct {
	Point
	Score float32
}

// Store is a single named collection of points.
type Store interface {
	// EnsureCollection creates the collection when missing. An existing
	// collection with a different dimension is an error.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, points []Point) error

	// Get returns the point with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Point, error)

	// Scroll returns up to limit points whose payload field equals value.
	Scroll(ctx context.Context, field string, value interface{}, limit int) ([]Point, error)

	// Search returns up to limit points ordered by cosine similarity.
	Search(ctx context.Context, vector []float32, limit int) ([]ScoredPoint, error)

	// DeleteCollection drops the collection and every point in it.
	DeleteCollection(ctx context.Context) error

	// Collection returns the collection name.
	Collection() string

	Close() error
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or the lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Rank scores every point against vector and returns the best limit hits.
// Ties keep input order.
func Rank(points []Point, vector []float32, limit int) []ScoredPoint {
	hits := make([]ScoredPoint, 0, len(points))
	for _, p := range points {
		hits = append(hits, ScoredPoint{Point: p, Score: Cosine(p.Vector, vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// PayloadMatches reports whether payload[field] equals value, comparing
// numbers by value and everything else by its printed form.
func PayloadMatches(payload map[string]interface{}, field string, value interface{}) bool {
	got, ok := payload[field]
	if !ok {
		return false
	}
	if gf, ok := toFloat(got); ok {
		if vf, ok := toFloat(value); ok {
			return gf == vf
		}
	}
	return fmt.Sprint(got) == fmt.Sprint(value)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// CheckDimension verifies every point has dimension components.
func CheckDimension(points []Point, dimension int) error {
	for _, p := range points {
		if len(p.Vector) != dimension {
			return fmt.Errorf("%w: point %s has %d, collection has %d", ErrDimensionMismatch, p.ID, len(p.Vector), dimension)
		}
	}
	return nil
}
