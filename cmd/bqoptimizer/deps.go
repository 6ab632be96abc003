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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/internal/config"
	"github.com/cloudact/bqoptimizer/pkg/analyzer"
	"github.com/cloudact/bqoptimizer/pkg/llm"
	llmfactory "github.com/cloudact/bqoptimizer/pkg/llm/factory"
	"github.com/cloudact/bqoptimizer/pkg/pipeline"
	"github.com/cloudact/bqoptimizer/pkg/schemaindex"
	"github.com/cloudact/bqoptimizer/pkg/vectordb"
	vectorfactory "github.com/cloudact/bqoptimizer/pkg/vectordb/factory"
	"github.com/cloudact/bqoptimizer/pkg/warehouse"
)

// deps holds the clients a command opened; close releases them.
type deps struct {
	client *bigquery.Client
	store  vectordb.Store
	oracle *llm.InstrumentedOracle
}

func (d *deps) close() {
	if d.oracle != nil {
		if stats := d.oracle.Stats(); stats.Calls > 0 {
			logger.Info("LLM usage",
				zap.String("provider", d.oracle.Name()),
				zap.Int("calls", stats.Calls),
				zap.Int("errors", stats.Errors),
				zap.Int("prompt_tokens", stats.PromptTokens),
				zap.Int("output_tokens", stats.OutputTokens),
				zap.Duration("latency", stats.Latency))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logger.Warn("Failed to close vector store", zap.Error(err))
		}
	}
	if d.client != nil {
		_ = d.client.Close()
	}
}

// baseConfig maps everything both flows share.
func baseConfig(c *config.Config, client *bigquery.Client) pipeline.Config {
	return pipeline.Config{
		ProjectID:           c.ProjectID,
		Region:              c.Region,
		LookbackDays:        c.LookbackDays,
		Metadata:            warehouse.NewMetadataSource(client, logger),
		Queries:             warehouse.NewQueryLogSource(client, logger),
		Generator:           c.GeneratorConfig(logger),
		RecommendationLimit: c.Analysis.RecommendationLimit,
		QueryLimit:          c.Analysis.QueryLimit,
		Concurrency:         c.Analysis.Concurrency,
		Stages: pipeline.Stages{
			SkipMetadata: c.Stages.SkipMetadata,
			SkipQueries:  c.Stages.SkipQueries,
			SkipVectorDB: c.Stages.SkipVectorDB,
		},
		Files: pipeline.Files{
			Recommendations: c.Output.RecommendationsFile,
			Metadata:        c.Output.MetadataFile,
			Queries:         c.Output.QueriesFile,
			Options:         c.OutputOptions(),
		},
		Out:    os.Stdout,
		Logger: logger,
	}
}

// newRunPipeline opens the warehouse client, the oracle and the schema index
// for a run. A vector store that cannot be opened is logged and skipped.
func newRunPipeline(ctx context.Context, c *config.Config) (*pipeline.Pipeline, *deps, error) {
	client, err := warehouse.NewClient(ctx, c.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	d := &deps{client: client}
	pc := baseConfig(c, client)

	if c.LLM.Enabled {
		oracle, err := llmfactory.New(c.LLMFactoryConfig(logger))
		if err != nil {
			d.close()
			return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		d.oracle = llm.NewInstrumentedOracle(oracle, logger)
		pc.Oracle = d.oracle
		pc.Analyzer = analyzer.Config{
			SchemaTokenBudget: c.LLM.SchemaTokenBudget,
			Concurrency:       c.Analysis.Concurrency,
			Timeout:           c.LLMTimeout(),
			Logger:            logger,
		}

		if c.Vector.Enabled && !c.Stages.SkipVectorDB {
			index, store, err := openIndex(c, d.oracle)
			if err != nil {
				logger.Warn("Vector database unavailable, continuing without schema context", zap.Error(err))
			} else {
				d.store = store
				pc.Index = index
			}
		}
	}

	return pipeline.New(pc), d, nil
}

func openIndex(c *config.Config, oracle llm.Oracle) (*schemaindex.Index, vectordb.Store, error) {
	store, err := vectorfactory.Open(c.VectorFactoryConfig(logger))
	if err != nil {
		return nil, nil, err
	}
	index, err := schemaindex.New(schemaindex.Config{
		Store:            store,
		Oracle:           oracle,
		Dimension:        c.Vector.Dimension,
		SummaryMaxTokens: c.LLM.SummaryMaxTokens,
		Timeout:          c.VectorTimeout(),
		Logger:           logger,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return index, store, nil
}

// newSuggestPipeline opens the warehouse client, the project source and the
// sink for a suggestion pass.
func newSuggestPipeline(ctx context.Context, c *config.Config, csvOutput string) (*pipeline.Pipeline, *deps, error) {
	sinkCfg, hasSink, err := c.SinkConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	client, err := warehouse.NewClient(ctx, c.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	d := &deps{client: client}
	pc := baseConfig(c, client)
	pc.SuggestionsFile = csvOutput
	pc.Now = func() time.Time { return time.Now().UTC() }

	if hasSink && csvOutput == "" {
		sink, err := warehouse.NewSink(client, sinkCfg)
		if err != nil {
			d.close()
			return nil, nil, err
		}
		pc.Sink = sink
	}

	switch {
	case c.OrganizationID != "" || c.ProjectQuery != "":
		pc.Projects = warehouse.NewProjectLister(c.Projects, logger)
		pc.ProjectFilter = warehouse.OrganizationFilter(c.OrganizationID, c.ProjectQuery)
	case len(c.Projects) > 0:
		pc.Projects = warehouse.StaticProjects(c.Projects)
	default:
		pc.Projects = warehouse.StaticProjects{c.ProjectID}
	}

	return pipeline.New(pc), d, nil
}
