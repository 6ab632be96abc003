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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	vectorfactory "github.com/cloudact/bqoptimizer/pkg/vectordb/factory"
)

var vectorCmd = &cobra.Command{
	Use:   "vector",
	Short: "Manage the schema vector store",
}

var vectorCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete and recreate the schema collection",
	Long: `Delete the schema collection with every stored schema and create it
again, empty, with the configured dimension.`,
	RunE: runVectorClean,
}

func init() {
	vectorCmd.AddCommand(vectorCleanCmd)
}

func runVectorClean(cmd *cobra.Command, _ []string) error {
	if !vectorfactory.IsSupported(cfg.Vector.Backend) {
		return fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
	store, err := vectorfactory.Open(cfg.VectorFactoryConfig(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.VectorTimeout())
	defer cancel()

	if err := store.DeleteCollection(ctx); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", store.Collection(), err)
	}
	if err := store.EnsureCollection(ctx, cfg.Vector.Dimension); err != nil {
		return fmt.Errorf("failed to recreate collection %s: %w", store.Collection(), err)
	}
	logger.Info("Collection recreated",
		zap.String("collection", store.Collection()),
		zap.Int("dimension", cfg.Vector.Dimension))
	fmt.Fprintf(cmd.OutOrStdout(), "Collection %s recreated (dimension %d)\n", store.Collection(), cfg.Vector.Dimension)
	return nil
}
