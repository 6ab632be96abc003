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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/internal/config"
	"github.com/cloudact/bqoptimizer/internal/log"
	"github.com/cloudact/bqoptimizer/internal/version"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bqoptimizer",
	Short: "BigQuery storage and query optimization advisor",
	Long: `bqoptimizer reads table metadata and recent query history from BigQuery,
applies heuristic rules and optional LLM analysis, and writes ranked
partitioning, clustering, lifecycle and query rewrite recommendations.`,
	Version:           version.Get(),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./bqoptimizer.yaml or $BQOPT_DATA_DIR/bqoptimizer.yaml)")
	rootCmd.PersistentFlags().String("project-id", "", "GCP project ID")
	rootCmd.PersistentFlags().String("region", "us", "BigQuery region for INFORMATION_SCHEMA.JOBS")

	rootCmd.PersistentFlags().String("llm-provider", "ollama", "LLM provider (ollama, anthropic)")
	rootCmd.PersistentFlags().String("vector-backend", "qdrant", "Schema vector store (qdrant, sqlite, memory)")

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	_ = viper.BindPFlag("project_id", rootCmd.PersistentFlags().Lookup("project-id"))
	_ = viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("vector.backend", rootCmd.PersistentFlags().Lookup("vector-backend"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(runCmd, suggestCmd, scheduleCmd, vectorCmd, configCmd, versionCmd)
}

// setup loads configuration and the logger before any command that needs
// them. Commands annotated with skipConfig run without a config.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfig] == "true" {
		return nil
	}

	var err error
	cfg, err = config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logger, err = log.Setup(level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	if path := viper.ConfigFileUsed(); path != "" {
		logger.Debug("Loaded config file", zap.String("path", path))
	}
	return nil
}

const skipConfig = "skip-config"
