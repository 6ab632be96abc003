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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cloudact/bqoptimizer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
}

var configExampleCmd = &cobra.Command{
	Use:         "example",
	Short:       "Print an example configuration file",
	Annotations: map[string]string{skipConfig: "true"},
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprint(cmd.OutOrStdout(), config.ExampleConfig())
	},
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write the example configuration to the data directory",
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration and check it",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().String("path", filepath.Join(config.DataDir(), config.DefaultConfigFileName+".yaml"), "Destination file")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configExampleCmd, configInitCmd, configShowCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(config.ExampleConfig()), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "project_id:      %s\n", cfg.ProjectID)
	fmt.Fprintf(out, "region:          %s\n", cfg.Region)
	fmt.Fprintf(out, "lookback_days:   %d\n", cfg.LookbackDays)
	fmt.Fprintf(out, "llm:             enabled=%t provider=%s\n", cfg.LLM.Enabled, cfg.LLM.Provider)
	fmt.Fprintf(out, "vector:          enabled=%t backend=%s collection=%s\n", cfg.Vector.Enabled, cfg.Vector.Backend, cfg.Vector.Collection)
	fmt.Fprintf(out, "output:          %s (%s)\n", cfg.Output.RecommendationsFile, cfg.Output.Format)
	if cfg.Output.BigQueryTable != "" {
		fmt.Fprintf(out, "suggestions:     %s\n", cfg.Output.BigQueryTable)
	}
	fmt.Fprintf(out, "schedule:        %q -> %s\n", cfg.Schedule.Cron, cfg.Schedule.Command)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	fmt.Fprintln(out, "Configuration is valid")
	return nil
}
