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
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Evaluate every table against the optimization criteria",
	Long: `Walk the projects of an organization (or the configured project list),
evaluate every table against the optimization criteria and store one row per
table in the BigQuery suggestions table, falling back to a CSV file.`,
	RunE: runSuggest,
}

func init() {
	f := suggestCmd.Flags()
	f.String("csv-output", "", "Write rows to this CSV file instead of BigQuery")
	f.String("organization-id", "", "Organization whose ACTIVE projects are analyzed")
	f.String("project-query", "", "Additional Resource Manager filter")
	f.StringSlice("projects", nil, "Projects to analyze when no organization is set")
	f.String("table", "", "Destination table as project.dataset.table")

	_ = viper.BindPFlag("organization_id", f.Lookup("organization-id"))
	_ = viper.BindPFlag("project_query", f.Lookup("project-query"))
	_ = viper.BindPFlag("projects", f.Lookup("projects"))
	_ = viper.BindPFlag("output.bigquery_table", f.Lookup("table"))
}

func runSuggest(cmd *cobra.Command, _ []string) error {
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	csvOutput, _ := cmd.Flags().GetString("csv-output")

	ctx := cmd.Context()
	p, d, err := newSuggestPipeline(ctx, cfg, csvOutput)
	if err != nil {
		return err
	}
	defer d.close()

	report, err := p.Suggest(ctx)
	if err != nil {
		return err
	}
	if report.Failed != nil {
		logger.Warn("Some projects were not fully analyzed", zap.Error(report.Failed))
	}
	logger.Info("Completed optimization suggestion analysis",
		zap.Int("projects", report.Projects),
		zap.Int("rows", len(report.Rows)),
		zap.Bool("inserted", report.Inserted),
		zap.String("csv", report.CSVPath))
	return nil
}
