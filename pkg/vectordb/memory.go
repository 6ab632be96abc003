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

package vectordb

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps points in process memory. Points are returned in
// insertion order by Scroll.
type MemoryStore struct {
	mu         sync.RWMutex
	collection string
	dimension  int
	exists     bool
	order      []string
	points     map[string]Point
}

// NewMemoryStore creates an empty store for collection.
func NewMemoryStore(collection string) *MemoryStore {
	return &MemoryStore{
		collection: collection,
		points:     make(map[string]Point),
	}
}

// Collection returns the collection name.
func (s *MemoryStore) Collection() string {
	return s.collection
}

// EnsureCollection creates the collection when missing.
func (s *MemoryStore) EnsureCollection(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exists {
		if s.dimension != dimension {
			return fmt.Errorf("%w: collection %s has %d, requested %d", ErrDimensionMismatch, s.collection, s.dimension, dimension)
		}
		return nil
	}
	s.exists = true
	s.dimension = dimension
	return nil
}

// Upsert inserts or replaces points.
func (s *MemoryStore) Upsert(_ context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists {
		return ErrNoCollection
	}
	if err := CheckDimension(points, s.dimension); err != nil {
		return err
	}
	for _, p := range points {
		if _, ok := s.points[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.points[p.ID] = clonePoint(p)
	}
	return nil
}

// Get returns a copy of the point with id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.points[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clonePoint(p)
	return &out, nil
}

// Scroll returns points whose payload field equals value.
func (s *MemoryStore) Scroll(_ context.Context, field string, value interface{}, limit int) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Point
	for _, id := range s.order {
		p := s.points[id]
		if PayloadMatches(p.Payload, field, value) {
			out = append(out, clonePoint(p))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Search ranks every stored point by cosine similarity.
func (s *MemoryStore) Search(_ context.Context, vector []float32, limit int) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.exists {
		return nil, ErrNoCollection
	}
	all := make([]Point, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, clonePoint(s.points[id]))
	}
	return Rank(all, vector, limit), nil
}

// DeleteCollection drops every point.
func (s *MemoryStore) DeleteCollection(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exists = false
	s.dimension = 0
	s.order = nil
	s.points = make(map[string]Point)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func clonePoint(p Point) Point {
	out := Point{ID: p.ID}
	if p.Vector != nil {
		out.Vector = append([]float32(nil), p.Vector...)
	}
	if p.Payload != nil {
		out.Payload = make(map[string]interface{}, len(p.Payload))
		for k, v := range p.Payload {
			out.Payload[k] = v
		}
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
