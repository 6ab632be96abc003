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

// Package sqlite implements vectordb.Store on a local SQLite file. Search is a
// brute-force cosine scan, which is adequate for one row per warehouse table.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/internal/sqlitedriver"
	"github.com/cloudact/bqoptimizer/pkg/vectordb"
)

//go:embed schema.sql
var schemaSQL string

// Config holds configuration for the SQLite store.
type Config struct {
	Path          string // Default: bqoptimizer_vectors.db
	Collection    string // Default: bigquery_schemas
	EncryptionKey string
	Logger        *zap.Logger
}

// Store is a vectordb.Store backed by SQLite.
type Store struct {
	db         *sql.DB
	collection string
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewStore opens the database and creates the tables.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = "bqoptimizer_vectors.db"
	}
	if cfg.Collection == "" {
		cfg.Collection = "bigquery_schemas"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	db, err := sqlitedriver.Open(sqlitedriver.Config{Path: cfg.Path, EncryptionKey: cfg.EncryptionKey})
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vector tables: %w", err)
	}

	return &Store{db: db, collection: cfg.Collection, logger: cfg.Logger}, nil
}

// Collection returns the collection name.
func (s *Store) Collection() string {
	return s.collection
}

// EnsureCollection registers the collection when missing.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.dimension(ctx)
	switch {
	case err == nil:
		if existing != dimension {
			return fmt.Errorf("%w: collection %s has %d, requested %d", vectordb.ErrDimensionMismatch, s.collection, existing, dimension)
		}
		return nil
	case !errors.Is(err, vectordb.ErrNoCollection):
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO vector_collections (name, dimension, created_at) VALUES (?, ?, ?)",
		s.collection, dimension, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}
	s.logger.Info("Created collection", zap.String("collection", s.collection), zap.Int("dimension", dimension))
	return nil
}

// Upsert inserts or replaces points in one transaction.
func (s *Store) Upsert(ctx context.Context, points []vectordb.Point) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if err := vectordb.CheckDimension(points, dim); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_points (collection, id, vector, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			vector = excluded.vector,
			payload = excluded.payload,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload for %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, p.ID, encodeVector(p.Vector), string(payload), now); err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns the point with id.
func (s *Store) Get(ctx context.Context, id string) (*vectordb.Point, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, vector, payload FROM vector_points WHERE collection = ? AND id = ?",
		s.collection, id)
	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vectordb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Scroll filters payloads in process, in insertion order.
func (s *Store) Scroll(ctx context.Context, field string, value interface{}, limit int) ([]vectordb.Point, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	var out []vectordb.Point
	for _, p := range all {
		if vectordb.PayloadMatches(p.Payload, field, value) {
			out = append(out, p)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Search scores every point in the collection.
func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]vectordb.ScoredPoint, error) {
	if _, err := s.dimension(ctx); err != nil {
		return nil, err
	}
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return vectordb.Rank(all, vector, limit), nil
}

// DeleteCollection removes the collection and its points.
func (s *Store) DeleteCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vector_points WHERE collection = ?", s.collection); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM vector_collections WHERE name = ?", s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("Deleted collection", zap.String("collection", s.collection))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension FROM vector_collections WHERE name = ?", s.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, vectordb.ErrNoCollection
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read collection %s: %w", s.collection, err)
	}
	return dim, nil
}

func (s *Store) all(ctx context.Context) ([]vectordb.Point, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, vector, payload FROM vector_points WHERE collection = ? ORDER BY rowid",
		s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	var out []vectordb.Point
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPoint(row scanner) (vectordb.Point, error) {
	var (
		p       vectordb.Point
		blob    []byte
		payload string
	)
	if err := row.Scan(&p.ID, &blob, &payload); err != nil {
		return p, err
	}
	p.Vector = decodeVector(blob)
	if payload != "" && payload != "null" {
		if err := json.Unmarshal([]byte(payload), &p.Payload); err != nil {
			return p, fmt.Errorf("failed to decode payload for %s: %w", p.ID, err)
		}
	}
	return p, nil
}

// Vectors are stored as little-endian float32 blobs.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

var _ vectordb.Store = (*Store)(nil)
