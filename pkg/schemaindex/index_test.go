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
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudact/bqoptimizer/pkg/llm"
	"github.com/cloudact/bqoptimizer/pkg/types"
	"github.com/cloudact/bqoptimizer/pkg/vectordb"
)

type fakeOracle struct {
	reply string
	err   error
	calls int
	last  llm.GenerateRequest
}

func (f *fakeOracle) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

func (f *fakeOracle) Name() string { return "fake" }

type failingSearchStore struct {
	*vectordb.MemoryStore
}

func (s failingSearchStore) Search(context.Context, []float32, int) ([]vectordb.ScoredPoint, error) {
	return nil, errors.New("connection refused")
}

func snapshot(id string, fields ...types.SchemaField) *types.TableSnapshot {
	tid, err := types.ParseTableID(id)
	if err != nil {
		panic(err)
	}
	return &types.TableSnapshot{
		ID:        tid,
		SizeBytes: 3 * types.BytesPerGB / 2,
		RowCount:  42000,
		Schema:    fields,
	}
}

var userFields = []types.SchemaField{
	{Name: "user_id", Type: "INTEGER", Mode: "REQUIRED"},
	{Name: "email", Type: "STRING", Mode: "NULLABLE"},
	{Name: "full_name", Type: "STRING", Mode: "NULLABLE"},
	{Name: "signup_date", Type: "DATE", Mode: "NULLABLE"},
	{Name: "last_login", Type: "TIMESTAMP", Mode: "NULLABLE"},
	{Name: "plan", Type: "STRING", Mode: "NULLABLE"},
}

func newIndex(t *testing.T, oracle llm.Oracle) (*Index, *vectordb.MemoryStore) {
	t.Helper()
	store := vectordb.NewMemoryStore("schemas")
	cfg := Config{Store: store, Dimension: 256}
	if oracle != nil {
		cfg.Oracle = oracle
	}
	ix, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, ix.Ensure(context.Background()))
	return ix, store
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Store: vectordb.NewMemoryStore("c"), Dimension: -1})
	assert.Error(t, err)

	ix, err := New(Config{Store: vectordb.NewMemoryStore("c")})
	require.NoError(t, err)
	assert.Equal(t, DefaultDimension, ix.dimension)
	assert.Equal(t, DefaultSummaryMaxTokens, ix.summaryMaxTokens)
}

func TestCanonicalText(t *testing.T) {
	s := snapshot("p.d.users",
		types.SchemaField{Name: "id", Type: "INTEGER", Mode: "REQUIRED"},
		types.SchemaField{Name: "address", Type: "RECORD", Fields: []types.SchemaField{
			{Name: "city", Type: "STRING", Mode: "NULLABLE"},
		}},
	)
	s.IsPartitioned = true

	want := "Table: p.d.users\n" +
		"Size: 1.50 GB\n" +
		"Rows: 42000\n" +
		"Partitioned: true\n" +
		"Clustered: false\n" +
		"\n" +
		"Schema:\n" +
		"- id (INTEGER, REQUIRED)\n" +
		"- address (RECORD, NULLABLE)\n" +
		"  - city (STRING, NULLABLE)\n"
	assert.Equal(t, want, CanonicalText(s))
	assert.Equal(t, want, CanonicalText(s), "rendering is deterministic")
}

func unitNorm(v []float32) float64 {
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	return math.Sqrt(n)
}

func TestHashEmbedding(t *testing.T) {
	a := HashEmbedding("Table: p.d.t\n- id (INTEGER, REQUIRED)", 128)
	b := HashEmbedding("Table: p.d.t\n- id (INTEGER, REQUIRED)", 128)
	require.Len(t, a, 128)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, unitNorm(a), 1e-5)

	empty := HashEmbedding("", 16)
	assert.InDelta(t, 1.0, unitNorm(empty), 1e-6)
	assert.Nil(t, HashEmbedding("x", 0))
}

func TestHashEmbedding_NearDuplicateSchemasAreCloser(t *testing.T) {
	base := snapshot("shop.sales.users", userFields...)
	extended := snapshot("shop.sales.users", append(append([]types.SchemaField{}, userFields...),
		types.SchemaField{Name: "country", Type: "STRING", Mode: "NULLABLE"})...)
	unrelated := snapshot("iot.telemetry.readings",
		types.SchemaField{Name: "device_serial", Type: "STRING", Mode: "REQUIRED"},
		types.SchemaField{Name: "temperature_c", Type: "FLOAT", Mode: "NULLABLE"},
		types.SchemaField{Name: "humidity_pct", Type: "FLOAT", Mode: "NULLABLE"},
		types.SchemaField{Name: "battery_mv", Type: "INTEGER", Mode: "NULLABLE"},
		types.SchemaField{Name: "firmware", Type: "STRING", Mode: "NULLABLE"},
	)
	unrelated.SizeBytes = 800 * types.BytesPerGB
	unrelated.RowCount = 9_000_000_000

	for _, dim := range []int{128, 768} {
		ea := HashEmbedding(CanonicalText(base), dim)
		eb := HashEmbedding(CanonicalText(extended), dim)
		ec := HashEmbedding(CanonicalText(unrelated), dim)

		assert.NotEqual(t, ea, eb)
		simAB := vectordb.Cosine(ea, eb)
		assert.Greater(t, simAB, vectordb.Cosine(ea, ec), "dim %d", dim)
		assert.Greater(t, simAB, vectordb.Cosine(eb, ec), "dim %d", dim)
	}
}

func TestPointID(t *testing.T) {
	// Name-based UUIDs are stable across runs and processes.
	assert.Equal(t, PointID("project.dataset.test_table"), PointID("project.dataset.test_table"))
	assert.NotEqual(t, PointID("p.d.a"), PointID("p.d.b"))
	assert.Len(t, PointID("p.d.a"), 36)
	assert.Equal(t, "5", PointID("p.d.a")[14:15])
}

func TestEmbed_OracleSalt(t *testing.T) {
	text := CanonicalText(snapshot("p.d.users", userFields...))

	oracle := &fakeOracle{reply: "  users table keyed by user_id  "}
	ix, _ := newIndex(t, oracle)
	salted := ix.Embed(context.Background(), text)

	assert.Equal(t, 1, oracle.calls)
	assert.True(t, strings.HasPrefix(oracle.last.Prompt, "Summarize this text in a few key points"))
	assert.True(t, strings.HasSuffix(oracle.last.Prompt, text))
	assert.Equal(t, DefaultSummaryMaxTokens, oracle.last.MaxTokens)
	require.NotNil(t, oracle.last.Temperature)
	assert.Equal(t, 0.1, *oracle.last.Temperature)

	assert.Equal(t, HashEmbedding("users table keyed by user_id\n"+text, 256), salted)
	assert.NotEqual(t, HashEmbedding(text, 256), salted)
}

func TestEmbed_FallsBackToTextHash(t *testing.T) {
	text := CanonicalText(snapshot("p.d.users", userFields...))
	want := HashEmbedding(text, 256)

	tests := []struct {
		name   string
		oracle llm.Oracle
	}{
		{name: "no oracle", oracle: nil},
		{name: "oracle unavailable", oracle: &fakeOracle{err: llm.ErrOracleUnavailable}},
		{name: "blank summary", oracle: &fakeOracle{reply: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, _ := newIndex(t, tt.oracle)
			assert.Equal(t, want, ix.Embed(context.Background(), text))
		})
	}
}

func TestPutGet_Idempotent(t *testing.T) {
	ctx := context.Background()
	ix, store := newIndex(t, nil)

	first := snapshot("p.d.users", userFields[:2]...)
	require.NoError(t, ix.Put(ctx, first))

	latest := snapshot("p.d.users", userFields...)
	latest.IsClustered = true
	require.NoError(t, ix.Put(ctx, latest))

	doc, ok := ix.Get(ctx, "p.d.users")
	require.True(t, ok)
	assert.Equal(t, CanonicalText(latest), doc.SchemaText)
	assert.Equal(t, PointID("p.d.users"), doc.PointID)
	require.NotNil(t, doc.Snapshot)
	assert.True(t, doc.Snapshot.IsClustered)
	assert.Len(t, doc.Snapshot.Schema, len(userFields))
	assert.Equal(t, int64(42000), doc.Snapshot.RowCount)

	matches, err := store.Scroll(ctx, "table_id", "p.d.users", 0)
	require.NoError(t, err)
	assert.Len(t, matches, 1, "one entry per table")
}

func TestPutAll_DeduplicatesWithinBatch(t *testing.T) {
	ctx := context.Background()
	ix, store := newIndex(t, nil)

	old := snapshot("p.d.a", userFields[:1]...)
	newer := snapshot("p.d.a", userFields...)
	n, err := ix.PutAll(ctx, []*types.TableSnapshot{old, nil, snapshot("p.d.b", userFields...), newer})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p, err := store.Get(ctx, PointID("p.d.a"))
	require.NoError(t, err)
	assert.Equal(t, CanonicalText(newer), p.Payload["schema_text"])

	n, err = ix.PutAll(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Error(t, ix.Put(ctx, nil))
}

func TestGet_Fallbacks(t *testing.T) {
	ctx := context.Background()
	ix, store := newIndex(t, nil)
	vec := HashEmbedding("x", 256)

	require.NoError(t, store.Upsert(ctx, []vectordb.Point{
		// Written under an unrelated key, found by payload.
		{ID: "custom-key", Vector: vec, Payload: map[string]interface{}{"table_id": "p.d.by_payload", "schema_text": "payload doc"}},
		// Written under the legacy key without a table_id payload.
		{ID: "p_d_legacy", Vector: vec, Payload: map[string]interface{}{"schema_text": "legacy doc"}},
	}))

	doc, ok := ix.Get(ctx, "p.d.by_payload")
	require.True(t, ok)
	assert.Equal(t, "payload doc", doc.SchemaText)
	assert.Equal(t, "custom-key", doc.PointID)

	doc, ok = ix.Get(ctx, "p.d.legacy")
	require.True(t, ok)
	assert.Equal(t, "legacy doc", doc.SchemaText)
	assert.Nil(t, doc.Snapshot)

	_, ok = ix.Get(ctx, "p.d.missing")
	assert.False(t, ok)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	ix, _ := newIndex(t, nil)

	users := snapshot("shop.sales.users", userFields...)
	readings := snapshot("iot.telemetry.readings",
		types.SchemaField{Name: "device_serial", Type: "STRING"},
		types.SchemaField{Name: "temperature_c", Type: "FLOAT"},
	)
	_, err := ix.PutAll(ctx, []*types.TableSnapshot{readings, users})
	require.NoError(t, err)

	docs := ix.Search(ctx, CanonicalText(users), 1)
	require.Len(t, docs, 1)
	assert.Equal(t, "shop.sales.users", docs[0].TableID)
}

func TestSearch_DegradesToEmpty(t *testing.T) {
	store := failingSearchStore{vectordb.NewMemoryStore("c")}
	ix, err := New(Config{Store: store, Dimension: 32})
	require.NoError(t, err)

	assert.Empty(t, ix.Search(context.Background(), "SELECT 1", 3))
	assert.Empty(t, ix.Relevant(context.Background(), "SELECT 1", []string{"p.d.t"}))
}

func TestRelevant(t *testing.T) {
	ctx := context.Background()
	ix, _ := newIndex(t, nil)

	var all []*types.TableSnapshot
	for _, id := range []string{"p.d.a", "p.d.b", "p.d.c", "p.d.d"} {
		all = append(all, snapshot(id, userFields...))
	}
	_, err := ix.PutAll(ctx, all)
	require.NoError(t, err)

	tests := []struct {
		name      string
		tableIDs  []string
		wantFirst []string
		wantLen   int
	}{
		{name: "direct hits only", tableIDs: []string{"p.d.a", "p.d.b", "p.d.c"}, wantFirst: []string{"p.d.a", "p.d.b", "p.d.c"}, wantLen: 3},
		{name: "topped up by similarity", tableIDs: []string{"p.d.d"}, wantFirst: []string{"p.d.d"}, wantLen: 3},
		{name: "duplicates collapse", tableIDs: []string{"p.d.a", "p.d.a"}, wantFirst: []string{"p.d.a"}, wantLen: 3},
		{name: "unknown tables", tableIDs: []string{"x.y.z"}, wantLen: 3},
		{name: "no references", tableIDs: nil, wantLen: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := ix.Relevant(ctx, "SELECT * FROM p.d.a", tt.tableIDs)
			require.Len(t, docs, tt.wantLen)

			seen := map[string]bool{}
			for i, d := range docs {
				assert.False(t, seen[d.TableID], "duplicate %s", d.TableID)
				seen[d.TableID] = true
				if i < len(tt.wantFirst) {
					assert.Equal(t, tt.wantFirst[i], d.TableID)
				}
			}
		})
	}
}
