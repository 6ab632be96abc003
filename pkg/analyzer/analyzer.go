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

// Package analyzer asks the text-generation oracle for an optimization of one
// historical query, with the schemas of the tables it touches as context.
package analyzer

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudact/bqoptimizer/pkg/extract"
	"github.com/cloudact/bqoptimizer/pkg/llm"
	"github.com/cloudact/bqoptimizer/pkg/types"
)

const (
	// DefaultSchemaTokenBudget bounds the schema context in the prompt
	DefaultSchemaTokenBudget = 6000

	// DefaultConcurrency is the number of queries analyzed at once
	DefaultConcurrency = 4
)

// SchemaSource supplies schema context for a query.
type SchemaSource interface {
	Relevant(ctx context.Context, queryText string, tableIDs []string) []types.SchemaDocument
}

// Config configures an Analyzer.
type Config struct {
	// Oracle is required
	Oracle llm.Oracle

	// Schemas is optional; without it the prompt carries no schema context
	Schemas SchemaSource

	TokenCounter      *llm.TokenCounter // Default: approximate counter
	SchemaTokenBudget int               // Default: 6000
	Concurrency       int               // Default: 4
	Timeout           time.Duration     // Per oracle call. Default: 120s

	Logger *zap.Logger
}

// Analyzer turns query records into LLM recommendations.
type Analyzer struct {
	oracle      llm.Oracle
	schemas     SchemaSource
	counter     *llm.TokenCounter
	budget      int
	concurrency int
	timeout     time.Duration
	logger      *zap.Logger
}

// New creates an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Oracle == nil {
		return nil, errors.New("analyzer requires an oracle")
	}
	if cfg.TokenCounter == nil {
		cfg.TokenCounter = llm.NewApproxTokenCounter()
	}
	if cfg.SchemaTokenBudget == 0 {
		cfg.SchemaTokenBudget = DefaultSchemaTokenBudget
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Analyzer{
		oracle:      cfg.Oracle,
		schemas:     cfg.Schemas,
		counter:     cfg.TokenCounter,
		budget:      cfg.SchemaTokenBudget,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}, nil
}

var (
	fromClause = regexp.MustCompile(`(?i)\bFROM\s+([^\s,;()]+)`)
	joinClause = regexp.MustCompile(`(?i)\bJOIN\s+([^\s,;()]+)`)
)

// ResolveReferencedTables returns the record's structured table list, or when
// that is empty, the identifiers following FROM and JOIN in the query text.
//
// The text scan is a best-effort heuristic, not a SQL parser: it picks up
// CTE names and UNNEST targets and misses comma joins.
func ResolveReferencedTables(record *types.QueryRecord) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(id string) {
		id = strings.Trim(strings.TrimSpace(id), "`[]")
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, id := range record.ReferencedTables {
		add(id)
	}
	if len(out) > 0 {
		return out
	}

	for _, re := range []*regexp.Regexp{fromClause, joinClause} {
		for _, m := range re.FindAllStringSubmatch(record.QueryText, -1) {
			add(m[1])
		}
	}
	return out
}

const promptTemplate = `
	You are an expert in BigQuery optimization. Analyze the following SQL query and suggest optimizations based on the table schemas provided.

	SQL QUERY:
	%ssql
	%s
	%s

	PERFORMANCE METRICS:
	- Bytes processed: %d
	- Duration: %d ms
	- Tables referenced: %s

	TABLE SCHEMAS:
	%s

	Provide a detailed analysis including:
	1. Partitioning recommendations (if applicable)
	2. Clustering recommendations (if applicable)
	3. Query structure improvements
	4. Any other optimization suggestions

	For each recommendation, provide:
	- A clear explanation of the problem
	- Specific implementation suggestions with SQL examples
	- Expected benefits (performance improvement, cost savings)

	Format your response as a JSON object with the following structure:
	{
	  "recommendation_type": "One of: PARTITION, CLUSTER, QUERY_OPTIMIZATION, MATERIALIZED_VIEW, INDEX, CACHE, TABLE_STRUCTURE",
	  "recommendation": "A concise recommendation",
	  "justification": "Detailed explanation",
	  "implementation": "Specific implementation details or SQL",
	  "estimated_savings_pct": A number between 0-100,
	  "priority": "One of: HIGH, MEDIUM, LOW"
	}
`

const fence = "```"

// Prompt renders the analysis prompt.
func (a *Analyzer) Prompt(record *types.QueryRecord, tableIDs []string, docs []types.SchemaDocument) string {
	tables := "N/A"
	if len(tableIDs) > 0 {
		tables = "[" + strings.Join(tableIDs, ", ") + "]"
	}
	// Docf dedents the template before formatting, so multi-line arguments
	// keep their own indentation.
	return heredoc.Docf(promptTemplate,
		fence, record.QueryText, fence,
		record.TotalBytesProcessed, record.DurationMs, tables,
		a.schemaContext(record, docs))
}

func (a *Analyzer) schemaContext(record *types.QueryRecord, docs []types.SchemaDocument) string {
	var b strings.Builder
	for _, d := range docs {
		if d.SchemaText == "" {
			continue
		}
		b.WriteString(d.SchemaText)
		b.WriteString("\n\n")
	}
	text, cut := a.counter.Truncate(b.String(), a.budget)
	if cut {
		a.logger.Debug("Schema context truncated",
			zap.String("job_id", record.JobID),
			zap.Int("token_budget", a.budget))
	}
	return text
}

// Analyze asks the oracle about one query. The second result is false when the
// oracle produced nothing usable; callers skip the query and continue.
func (a *Analyzer) Analyze(ctx context.Context, record *types.QueryRecord) (*types.Recommendation, bool) {
	if record == nil || strings.TrimSpace(record.QueryText) == "" {
		return nil, false
	}

	tableIDs := ResolveReferencedTables(record)
	var docs []types.SchemaDocument
	if a.schemas != nil {
		docs = a.schemas.Relevant(ctx, record.QueryText, tableIDs)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.oracle.Generate(callCtx, llm.GenerateRequest{Prompt: a.Prompt(record, tableIDs, docs)})
	if err != nil {
		a.logger.Warn("Oracle call failed, skipping query",
			zap.String("job_id", record.JobID),
			zap.String("provider", a.oracle.Name()),
			zap.Error(err))
		return nil, false
	}

	res := extract.ExtractResult(raw, tableIDs)
	if res.Method == extract.MethodPlaceholder {
		a.logger.Warn("Oracle response was not structured, using placeholder",
			zap.String("job_id", record.JobID))
	}

	rec := res.Recommendation
	rec.QueryID = record.JobID
	rec.QueryText = record.QueryText
	rec.QueryCreatedAt = record.CreationTime
	return rec, true
}

// AnalyzeAll analyzes the first limit records (all when limit <= 0) with
// bounded concurrency. Results keep input order; skipped queries are omitted.
func (a *Analyzer) AnalyzeAll(ctx context.Context, records []types.QueryRecord, limit int) []types.Recommendation {
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	results := make([]*types.Recommendation, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range records {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			a.logger.Debug("Analyzing query",
				zap.Int("index", i+1),
				zap.Int("total", len(records)),
				zap.String("job_id", records[i].JobID))
			if rec, ok := a.Analyze(gctx, &records[i]); ok {
				results[i] = rec
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]types.Recommendation, 0, len(records))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	a.logger.Info("Query analysis finished",
		zap.Int("queries", len(records)),
		zap.Int("recommendations", len(out)))
	return out
}
