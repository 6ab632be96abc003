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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudact/bqoptimizer/pkg/vectordb"
)

func newTestStore(t *testing.T, collection string) *Store {
	t.Helper()
	t.Setenv("BQOPT_DB_KEY", "")
	s, err := NewStore(Config{Path: ":memory:", Collection: collection})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "schemas")

	assert.ErrorIs(t, s.Upsert(ctx, []vectordb.Point{{ID: "a", Vector: []float32{1, 0}}}), vectordb.ErrNoCollection)
	_, err := s.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, vectordb.ErrNoCollection)

	require.NoError(t, s.EnsureCollection(ctx, 2))
	require.NoError(t, s.EnsureCollection(ctx, 2))
	assert.ErrorIs(t, s.EnsureCollection(ctx, 5), vectordb.ErrDimensionMismatch)

	require.NoError(t, s.Upsert(ctx, []vectordb.Point{
		{ID: "a", Vector: []float32{1, 0}, Payload: map[string]interface{}{"table_id": "p.d.a", "rows": 10}},
		{ID: "b", Vector: []float32{0, 1}, Payload: map[string]interface{}{"table_id": "p.d.b"}},
	}))
	assert.ErrorIs(t, s.Upsert(ctx, []vectordb.Point{{ID: "c", Vector: []float32{1, 2, 3}}}), vectordb.ErrDimensionMismatch)

	p, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, p.Vector)
	assert.Equal(t, "p.d.a", p.Payload["table_id"])
	assert.Equal(t, float64(10), p.Payload["rows"])

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, vectordb.ErrNotFound)

	found, err := s.Scroll(ctx, "table_id", "p.d.b", 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].ID)

	hits, err := s.Search(ctx, []float32{0.2, 0.8}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	require.NoError(t, s.DeleteCollection(ctx))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, vectordb.ErrNotFound)
	require.NoError(t, s.EnsureCollection(ctx, 3))
}

func TestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "c")
	require.NoError(t, s.EnsureCollection(ctx, 2))

	require.NoError(t, s.Upsert(ctx, []vectordb.Point{{ID: "a", Vector: []float32{1, 0}, Payload: map[string]interface{}{"v": "old"}}}))
	require.NoError(t, s.Upsert(ctx, []vectordb.Point{{ID: "a", Vector: []float32{0, 1}, Payload: map[string]interface{}{"v": "new"}}}))

	all, err := s.Scroll(ctx, "v", "new", 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []float32{0, 1}, all[0].Vector)
}

func TestStore_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	t.Setenv("BQOPT_DB_KEY", "")
	path := filepath.Join(t.TempDir(), "vectors.db")

	a, err := NewStore(Config{Path: path, Collection: "a"})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewStore(Config{Path: path, Collection: "b"})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.EnsureCollection(ctx, 2))
	require.NoError(t, b.EnsureCollection(ctx, 2))
	require.NoError(t, a.Upsert(ctx, []vectordb.Point{{ID: "x", Vector: []float32{1, 1}}}))

	_, err = b.Get(ctx, "x")
	assert.ErrorIs(t, err, vectordb.ErrNotFound)
	_, err = a.Get(ctx, "x")
	assert.NoError(t, err)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, -1.5, 3.25, 1e-7}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Empty(t, decodeVector(nil))
}
