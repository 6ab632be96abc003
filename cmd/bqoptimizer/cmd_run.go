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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/internal/log"
	"github.com/cloudact/bqoptimizer/pkg/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect metadata and queries and write ranked recommendations",
	Long: `Collect table metadata and recent query history for one project, generate
heuristic recommendations, analyze the heaviest queries with the configured LLM
(with schema context from the vector store) and write the ranked list.

Stages can be skipped to reuse the metadata and query files of an earlier run.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.Int("lookback-days", 30, "Days of query history to analyze")
	f.Bool("no-llm", false, "Disable LLM-based recommendations")
	f.String("output-file", output.DefaultRecommendationsFile, "Recommendations output file")
	f.String("format", "csv", "Output format (csv, xlsx)")
	f.Bool("compress", false, "Gzip CSV outputs")
	f.Bool("skip-metadata", false, "Skip collecting table metadata (use existing file)")
	f.Bool("skip-queries", false, "Skip collecting query history (use existing file)")
	f.Bool("skip-vector-db", false, "Skip using the vector database for schema context")
	f.Int("query-limit", 10, "Maximum number of queries to analyze with the LLM")

	_ = viper.BindPFlag("lookback_days", f.Lookup("lookback-days"))
	_ = viper.BindPFlag("output.recommendations_file", f.Lookup("output-file"))
	_ = viper.BindPFlag("output.format", f.Lookup("format"))
	_ = viper.BindPFlag("output.compress", f.Lookup("compress"))
	_ = viper.BindPFlag("stages.skip_metadata", f.Lookup("skip-metadata"))
	_ = viper.BindPFlag("stages.skip_queries", f.Lookup("skip-queries"))
	_ = viper.BindPFlag("stages.skip_vector_db", f.Lookup("skip-vector-db"))
	_ = viper.BindPFlag("analysis.query_limit", f.Lookup("query-limit"))
}

func runRun(cmd *cobra.Command, _ []string) error {
	defer log.Sync()
	if noLLM, _ := cmd.Flags().GetBool("no-llm"); noLLM {
		cfg.LLM.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	p, d, err := newRunPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	report, err := p.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("Run finished",
		zap.Int("tables", report.Tables),
		zap.Int("queries", report.Queries),
		zap.Int("heuristic", report.Heuristic),
		zap.Int("llm", report.LLM),
		zap.String("output", report.OutputPath))
	return nil
}
