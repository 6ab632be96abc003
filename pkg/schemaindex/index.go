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

// Package schemaindex stores canonical text renderings of table schemas in a
// vector store and finds them again by table id or by similarity to free text.
package schemaindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/pkg/llm"
	"github.com/cloudact/bqoptimizer/pkg/types"
	"github.com/cloudact/bqoptimizer/pkg/vectordb"
)

const (
	// DefaultDimension is the embedding size of new collections
	DefaultDimension = 768

	// DefaultSummaryMaxTokens bounds the summary sub-call
	DefaultSummaryMaxTokens = 256

	// RelevantTarget is how many documents Relevant tries to return
	RelevantTarget = 3

	summaryTemperature = 0.1
)

// Payload keys written with every point.
const (
	fieldTableID     = "table_id"
	fieldPointID     = "point_id"
	fieldSchemaText  = "schema_text"
	fieldSizeBytes   = "size_bytes"
	fieldRowCount    = "row_count"
	fieldPartitioned = "is_partitioned"
	fieldClustered   = "is_clustered"
	fieldSchema      = "schema"
	fieldIndexedAt   = "indexed_at"
)

// Config configures an Index.
type Config struct {
	// Store is required
	Store vectordb.Store

	// Oracle salts embeddings with a summary; nil uses the text hash alone
	Oracle llm.Oracle

	Dimension        int           // Default: 768
	SummaryMaxTokens int           // Default: 256
	Timeout          time.Duration // Per external call. Default: 30s

	Logger *zap.Logger
}

// Index is the schema similarity index.
type Index struct {
	store            vectordb.Store
	oracle           llm.Oracle
	dimension        int
	summaryMaxTokens int
	timeout          time.Duration
	logger           *zap.Logger
}

// New creates an index over cfg.Store.
func New(cfg Config) (*Index, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("schema index requires a vector store")
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Dimension < 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.SummaryMaxTokens == 0 {
		cfg.SummaryMaxTokens = DefaultSummaryMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Index{
		store:            cfg.Store,
		oracle:           cfg.Oracle,
		dimension:        cfg.Dimension,
		summaryMaxTokens: cfg.SummaryMaxTokens,
		timeout:          cfg.Timeout,
		logger:           cfg.Logger,
	}, nil
}

// PointID is the stable key of a table: a name-based UUID (v5, DNS namespace)
// of the dotted id.
func PointID(tableID string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(tableID)).String()
}

// Ensure creates the collection when missing.
func (ix *Index) Ensure(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()
	return ix.store.EnsureCollection(ctx, ix.dimension)
}

// Embed returns the embedding of text. With an oracle, the summary of text is
// hashed together with text; without one, or when the summary call fails or
// returns nothing, text is hashed alone.
func (ix *Index) Embed(ctx context.Context, text string) []float32 {
	if summary := ix.summarize(ctx, text); summary != "" {
		return HashEmbedding(summary+"\n"+text, ix.dimension)
	}
	return HashEmbedding(text, ix.dimension)
}

const summaryPrompt = "Summarize this text in a few key points, focusing on the most important technical details:\n\n"

func (ix *Index) summarize(ctx context.Context, text string) string {
	if ix.oracle == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()

	summary, err := ix.oracle.Generate(ctx, llm.GenerateRequest{
		Prompt:      summaryPrompt + text,
		Temperature: llm.Float(summaryTemperature),
		MaxTokens:   ix.summaryMaxTokens,
	})
	if err != nil {
		ix.logger.Debug("Summary unavailable, hashing text alone", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(summary)
}

// Document builds the indexed form of a snapshot.
func (ix *Index) Document(ctx context.Context, s *types.TableSnapshot) types.SchemaDocument {
	id := s.ID.String()
	text := CanonicalText(s)
	return types.SchemaDocument{
		TableID:    id,
		PointID:    PointID(id),
		SchemaText: text,
		Embedding:  ix.Embed(ctx, text),
		Snapshot:   s,
	}
}

// Put indexes one snapshot, replacing any previous version.
func (ix *Index) Put(ctx context.Context, s *types.TableSnapshot) error {
	if s == nil {
		return fmt.Errorf("nil snapshot")
	}
	_, err := ix.PutAll(ctx, []*types.TableSnapshot{s})
	return err
}

// PutAll indexes snapshots in one upsert and returns how many were written.
// Later snapshots of the same table replace earlier ones.
func (ix *Index) PutAll(ctx context.Context, snapshots []*types.TableSnapshot) (int, error) {
	byID := make(map[string]int)
	var points []vectordb.Point
	now := time.Now().UTC().Format(time.RFC3339)

	for _, s := range snapshots {
		if s == nil {
			continue
		}
		doc := ix.Document(ctx, s)
		p := vectordb.Point{
			ID:      doc.PointID,
			Vector:  doc.Embedding,
			Payload: payload(doc, s, now),
		}
		if i, ok := byID[doc.PointID]; ok {
			points[i] = p
			continue
		}
		byID[doc.PointID] = len(points)
		points = append(points, p)
	}
	if len(points) == 0 {
		ix.logger.Warn("No schemas to index")
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()
	if err := ix.store.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("failed to store %d schemas: %w", len(points), err)
	}
	ix.logger.Info("Stored schema documents",
		zap.Int("count", len(points)),
		zap.String("collection", ix.store.Collection()))
	return len(points), nil
}

// Get returns the document for tableID. The stable key is tried first, then a
// payload match on table_id, then the legacy underscore key.
func (ix *Index) Get(ctx context.Context, tableID string) (*types.SchemaDocument, bool) {
	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()

	if doc, ok := ix.getByKey(ctx, PointID(tableID)); ok {
		return doc, true
	}

	points, err := ix.store.Scroll(ctx, fieldTableID, tableID, 1)
	if err != nil {
		ix.logger.Debug("Payload lookup failed", zap.String("table_id", tableID), zap.Error(err))
	} else if len(points) > 0 {
		doc := fromPoint(points[0])
		return &doc, true
	}

	if parsed, err := types.ParseTableID(tableID); err == nil {
		if doc, ok := ix.getByKey(ctx, parsed.LegacyKey()); ok {
			return doc, true
		}
	}

	ix.logger.Debug("No schema found", zap.String("table_id", tableID))
	return nil, false
}

func (ix *Index) getByKey(ctx context.Context, key string) (*types.SchemaDocument, bool) {
	p, err := ix.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, vectordb.ErrNotFound) {
			ix.logger.Debug("Point lookup failed", zap.String("point_id", key), zap.Error(err))
		}
		return nil, false
	}
	doc := fromPoint(*p)
	return &doc, true
}

// Search returns up to k documents most similar to text. Store failures yield
// an empty result.
func (ix *Index) Search(ctx context.Context, text string, k int) []types.SchemaDocument {
	if k <= 0 {
		k = RelevantTarget
	}
	vector := ix.Embed(ctx, text)

	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()

	hits, err := ix.store.Search(ctx, vector, k)
	if err != nil {
		ix.logger.Warn("Schema search failed", zap.Error(err))
		return nil
	}
	docs := make([]types.SchemaDocument, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, fromPoint(h.Point))
	}
	return docs
}

// Relevant returns the documents of tableIDs that are indexed, topped up to
// RelevantTarget by similarity to queryText when fewer were found. No table
// appears twice.
func (ix *Index) Relevant(ctx context.Context, queryText string, tableIDs []string) []types.SchemaDocument {
	var docs []types.SchemaDocument
	seen := make(map[string]bool)

	for _, id := range tableIDs {
		if seen[id] {
			continue
		}
		if doc, ok := ix.Get(ctx, id); ok {
			seen[doc.TableID] = true
			seen[id] = true
			docs = append(docs, *doc)
		}
	}

	if len(docs) < RelevantTarget {
		for _, doc := range ix.Search(ctx, queryText, RelevantTarget) {
			if len(docs) >= RelevantTarget {
				break
			}
			if doc.TableID == "" || seen[doc.TableID] {
				continue
			}
			seen[doc.TableID] = true
			docs = append(docs, doc)
		}
	}
	return docs
}

func payload(doc types.SchemaDocument, s *types.TableSnapshot, indexedAt string) map[string]interface{} {
	return map[string]interface{}{
		fieldTableID:     doc.TableID,
		fieldPointID:     doc.PointID,
		fieldSchemaText:  doc.SchemaText,
		fieldSizeBytes:   s.SizeBytes,
		fieldRowCount:    s.RowCount,
		fieldPartitioned: s.IsPartitioned,
		fieldClustered:   s.IsClustered,
		fieldSchema:      types.SchemaJSON(s.Schema),
		fieldIndexedAt:   indexedAt,
	}
}

func fromPoint(p vectordb.Point) types.SchemaDocument {
	doc := types.SchemaDocument{
		TableID:    stringField(p.Payload, fieldTableID),
		PointID:    p.ID,
		SchemaText: stringField(p.Payload, fieldSchemaText),
		Embedding:  p.Vector,
	}
	if id, err := types.ParseTableID(doc.TableID); err == nil {
		snap := &types.TableSnapshot{
			ID:            id,
			SizeBytes:     int64Field(p.Payload, fieldSizeBytes),
			RowCount:      int64Field(p.Payload, fieldRowCount),
			IsPartitioned: boolField(p.Payload, fieldPartitioned),
			IsClustered:   boolField(p.Payload, fieldClustered),
		}
		// A bad schema leaves the snapshot without fields.
		snap.Schema, _ = types.ParseSchemaJSON(stringField(p.Payload, fieldSchema))
		doc.Snapshot = snap
	}
	return doc
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func int64Field(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func boolField(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}
