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

// Package qdrant implements vectordb.Store against the Qdrant REST API.
package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/pkg/vectordb"
)

// Config holds configuration for the Qdrant client.
type Config struct {
	Endpoint   string        // Default: http://localhost:6333
	Collection string        // Default: bigquery_schemas
	APIKey     string        // Optional, sent as the api-key header
	Timeout    time.Duration // Default: 30s
	Logger     *zap.Logger
}

// Client is a vectordb.Store bound to one Qdrant collection.
type Client struct {
	rest       *resty.Client
	collection string
	logger     *zap.Logger
}

// NewClient creates a new Qdrant client.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:6333"
	}
	if cfg.Collection == "" {
		cfg.Collection = "bigquery_schemas"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rest := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetPathParam("collection", cfg.Collection)
	if cfg.APIKey != "" {
		rest.SetHeader("api-key", cfg.APIKey)
	}

	return &Client{
		rest:       rest,
		collection: cfg.Collection,
		logger:     cfg.Logger,
	}
}

// Collection returns the collection name.
func (c *Client) Collection() string {
	return c.collection
}

// Collections lists every collection on the server.
func (c *Client) Collections(ctx context.Context) ([]string, error) {
	var out struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Result.Collections))
	for _, col := range out.Result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}

// EnsureCollection creates the collection with cosine distance when missing.
func (c *Client) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := c.do(ctx, http.MethodGet, "/collections/{collection}", nil, &info)
	switch {
	case err == nil:
		size := info.Result.Config.Params.Vectors.Size
		if size != 0 && size != dimension {
			return fmt.Errorf("%w: collection %s has %d, requested %d", vectordb.ErrDimensionMismatch, c.collection, size, dimension)
		}
		c.logger.Debug("Collection already exists", zap.String("collection", c.collection))
		return nil
	case !isNotFound(err):
		return err
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, "/collections/{collection}", body, nil); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.collection, err)
	}
	c.logger.Info("Created collection", zap.String("collection", c.collection), zap.Int("dimension", dimension))
	return nil
}

// Upsert writes points and waits for the operation to be applied.
func (c *Client) Upsert(ctx context.Context, points []vectordb.Point) error {
	if len(points) == 0 {
		return nil
	}
	wire := make([]point, 0, len(points))
	for _, p := range points {
		wire = append(wire, point{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
	}
	req := c.rest.R().
		SetQueryParam("wait", "true").
		SetBody(map[string]interface{}{"points": wire})
	if err := c.send(ctx, req, http.MethodPut, "/collections/{collection}/points", nil); err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

// Get fetches one point by id.
func (c *Client) Get(ctx context.Context, id string) (*vectordb.Point, error) {
	var out struct {
		Result *point `json:"result"`
	}
	req := c.rest.R().SetPathParam("id", id)
	if err := c.send(ctx, req, http.MethodGet, "/collections/{collection}/points/{id}", &out); err != nil {
		if isNotFound(err) {
			return nil, vectordb.ErrNotFound
		}
		return nil, err
	}
	if out.Result == nil {
		return nil, vectordb.ErrNotFound
	}
	p := out.Result.toPoint()
	return &p, nil
}

// Scroll returns points whose payload field matches value.
func (c *Client) Scroll(ctx context.Context, field string, value interface{}, limit int) ([]vectordb.Point, error) {
	if limit <= 0 {
		limit = 10
	}
	body := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{
					"key":   field,
					"match": map[string]interface{}{"value": value},
				},
			},
		},
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	var out struct {
		Result struct {
			Points []point `json:"points"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/{collection}/points/scroll", body, &out); err != nil {
		return nil, err
	}
	points := make([]vectordb.Point, 0, len(out.Result.Points))
	for _, p := range out.Result.Points {
		points = append(points, p.toPoint())
	}
	return points, nil
}

// Search returns the nearest points by cosine similarity.
func (c *Client) Search(ctx context.Context, vector []float32, limit int) ([]vectordb.ScoredPoint, error) {
	if limit <= 0 {
		limit = 10
	}
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var out struct {
		Result []struct {
			point
			Score float32 `json:"score"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/{collection}/points/search", body, &out); err != nil {
		return nil, err
	}
	hits := make([]vectordb.ScoredPoint, 0, len(out.Result))
	for _, r := range out.Result {
		hits = append(hits, vectordb.ScoredPoint{Point: r.point.toPoint(), Score: r.Score})
	}
	return hits, nil
}

// DeleteCollection drops the collection. A missing collection is not an error.
func (c *Client) DeleteCollection(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, "/collections/{collection}", nil, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete collection %s: %w", c.collection, err)
	}
	c.logger.Info("Deleted collection", zap.String("collection", c.collection))
	return nil
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.rest.R()
	if body != nil {
		req.SetBody(body)
	}
	return c.send(ctx, req, method, path, out)
}

func (c *Client) send(ctx context.Context, req *resty.Request, method, path string, out interface{}) error {
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return nil
}

// StatusError is a non-2xx reply from Qdrant.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("qdrant %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// point is the wire form. Qdrant ids are UUID strings or unsigned integers.
type point struct {
	ID      interface{}            `json:"id"`
	Vector  []float32              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func (p point) toPoint() vectordb.Point {
	id := ""
	switch v := p.ID.(type) {
	case string:
		id = v
	case float64:
		id = fmt.Sprintf("%.0f", v)
	case nil:
	default:
		id = fmt.Sprint(v)
	}
	return vectordb.Point{ID: id, Vector: p.Vector, Payload: p.Payload}
}

var _ vectordb.Store = (*Client)(nil)
