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

// Package config loads the optimizer configuration from defaults, an optional
// YAML file, BQOPT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/pkg/analysis"
	llmfactory "github.com/cloudact/bqoptimizer/pkg/llm/factory"
	"github.com/cloudact/bqoptimizer/pkg/output"
	"github.com/cloudact/bqoptimizer/pkg/warehouse"
	vectorfactory "github.com/cloudact/bqoptimizer/pkg/vectordb/factory"
)

const (
	// DefaultConfigFileName is searched for without extension
	DefaultConfigFileName = "bqoptimizer"

	// EnvPrefix prefixes environment overrides, e.g. BQOPT_LLM_PROVIDER
	EnvPrefix = "BQOPT"
)

// Config is the complete optimizer configuration.
type Config struct {
	ProjectID      string   `mapstructure:"project_id"`
	Projects       []string `mapstructure:"projects"`        // Manual list for suggest
	OrganizationID string   `mapstructure:"organization_id"` // Enables project search
	ProjectQuery   string   `mapstructure:"project_query"`   // Extra Resource Manager filter
	LookbackDays   int      `mapstructure:"lookback_days"`
	Region         string   `mapstructure:"region"`

	Analysis AnalysisConfig `mapstructure:"analysis"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Output   OutputConfig   `mapstructure:"output"`
	Stages   StagesConfig   `mapstructure:"stages"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AnalysisConfig tunes the heuristic generator and LLM fan-out.
type AnalysisConfig struct {
	TableSizeThresholdGB     float64 `mapstructure:"table_size_threshold_gb"`
	MinQueryCount            int     `mapstructure:"min_query_count"`
	RecommendationLimit      int     `mapstructure:"recommendation_limit"`
	QueryLimit               int     `mapstructure:"query_limit"`
	ScanRatioThreshold       float64 `mapstructure:"scan_ratio_threshold"`
	Concurrency              int     `mapstructure:"concurrency"`
	CountDuplicateReferences bool    `mapstructure:"count_duplicate_references"`
}

// LLMConfig selects and tunes the text-generation oracle.
type LLMConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"` // ollama, anthropic

	OllamaEndpoint string `mapstructure:"ollama_endpoint"`
	OllamaModel    string `mapstructure:"ollama_model"`

	AnthropicAPIKey  string `mapstructure:"anthropic_api_key"` // From env or flag only
	AnthropicModel   string `mapstructure:"anthropic_model"`
	AnthropicBaseURL string `mapstructure:"anthropic_base_url"`

	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	SummaryMaxTokens  int     `mapstructure:"summary_max_tokens"`
	SchemaTokenBudget int     `mapstructure:"schema_token_budget"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// VectorConfig selects the schema similarity store.
type VectorConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Backend        string `mapstructure:"backend"` // qdrant, sqlite, memory
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Collection     string `mapstructure:"collection"`
	Dimension      int    `mapstructure:"dimension"`
	SQLitePath     string `mapstructure:"sqlite_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// OutputConfig names the files and the warehouse table written.
type OutputConfig struct {
	RecommendationsFile string `mapstructure:"recommendations_file"`
	MetadataFile        string `mapstructure:"metadata_file"`
	QueriesFile         string `mapstructure:"queries_file"`
	Format              string `mapstructure:"format"` // csv, xlsx
	Compress            bool   `mapstructure:"compress"`

	// BigQueryTable is project.dataset.table for suggest. Empty writes CSV only.
	BigQueryTable string `mapstructure:"bigquery_table"`
	Location      string `mapstructure:"location"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// StagesConfig skips collection stages in favor of earlier files.
type StagesConfig struct {
	SkipMetadata bool `mapstructure:"skip_metadata"`
	SkipQueries  bool `mapstructure:"skip_queries"`
	SkipVectorDB bool `mapstructure:"skip_vector_db"`
}

// ScheduleConfig configures periodic runs.
type ScheduleConfig struct {
	Cron    string `mapstructure:"cron"`
	Command string `mapstructure:"command"` // run or suggest
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// SetDefaults registers every key with its default so env overrides apply.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project_id", "")
	v.SetDefault("projects", []string{})
	v.SetDefault("organization_id", "")
	v.SetDefault("project_query", "")
	v.SetDefault("lookback_days", 30)
	v.SetDefault("region", "us")

	v.SetDefault("analysis.table_size_threshold_gb", 0.01)
	v.SetDefault("analysis.min_query_count", 0)
	v.SetDefault("analysis.recommendation_limit", 100)
	v.SetDefault("analysis.query_limit", 10)
	v.SetDefault("analysis.scan_ratio_threshold", 0.5)
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.count_duplicate_references", false)

	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.provider", llmfactory.ProviderOllama)
	v.SetDefault("llm.ollama_endpoint", "http://127.0.0.1:11434")
	v.SetDefault("llm.ollama_model", "llama3")
	v.SetDefault("llm.anthropic_api_key", "")
	v.SetDefault("llm.anthropic_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.anthropic_base_url", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.summary_max_tokens", 256)
	v.SetDefault("llm.schema_token_budget", 6000)
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.requests_per_second", 2.0)

	v.SetDefault("vector.enabled", true)
	v.SetDefault("vector.backend", vectorfactory.BackendQdrant)
	v.SetDefault("vector.endpoint", "http://localhost:6333")
	v.SetDefault("vector.api_key", "")
	v.SetDefault("vector.collection", "bigquery_schemas")
	v.SetDefault("vector.dimension", 768)
	v.SetDefault("vector.sqlite_path", filepath.Join(DataDir(), "vectors.db"))
	v.SetDefault("vector.timeout_seconds", 30)

	v.SetDefault("output.recommendations_file", output.DefaultRecommendationsFile)
	v.SetDefault("output.metadata_file", output.DefaultMetadataFile)
	v.SetDefault("output.queries_file", output.DefaultQueriesFile)
	v.SetDefault("output.format", string(output.FormatCSV))
	v.SetDefault("output.compress", false)
	v.SetDefault("output.bigquery_table", "")
	v.SetDefault("output.location", "US")
	v.SetDefault("output.retention_days", 365)

	v.SetDefault("stages.skip_metadata", false)
	v.SetDefault("stages.skip_queries", false)
	v.SetDefault("stages.skip_vector_db", false)

	v.SetDefault("schedule.cron", "0 6 * * *")
	v.SetDefault("schedule.command", "run")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration into v and returns it unmarshalled. cfgFile, when
// set, must exist; otherwise bqoptimizer.yaml is looked up in the working
// directory and DataDir, and its absence is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(DataDir())
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required (set project_id in config, BQOPT_PROJECT_ID or --project-id)")
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("lookback_days must be positive, got %d", c.LookbackDays)
	}
	if c.Analysis.Concurrency < 0 {
		return fmt.Errorf("analysis.concurrency must not be negative")
	}
	if c.Analysis.ScanRatioThreshold < 0 || c.Analysis.ScanRatioThreshold > 1 {
		return fmt.Errorf("analysis.scan_ratio_threshold must be between 0 and 1, got %g", c.Analysis.ScanRatioThreshold)
	}

	if c.LLM.Enabled {
		if !llmfactory.IsSupported(c.LLM.Provider) {
			return fmt.Errorf("unsupported LLM provider: %s (must be one of %s)",
				c.LLM.Provider, strings.Join(llmfactory.Providers, ", "))
		}
		switch strings.ToLower(c.LLM.Provider) {
		case llmfactory.ProviderOllama:
			if c.LLM.OllamaEndpoint == "" || c.LLM.OllamaModel == "" {
				return fmt.Errorf("ollama endpoint and model are required (set llm.ollama_endpoint and llm.ollama_model)")
			}
		case llmfactory.ProviderAnthropic:
			// The client falls back to ANTHROPIC_API_KEY at construction.
		}
	}

	if c.Vector.Enabled {
		if !vectorfactory.IsSupported(c.Vector.Backend) {
			return fmt.Errorf("unsupported vector backend: %s (must be one of %s)",
				c.Vector.Backend, strings.Join(vectorfactory.Backends, ", "))
		}
		if c.Vector.Dimension <= 0 {
			return fmt.Errorf("vector.dimension must be positive, got %d", c.Vector.Dimension)
		}
	}

	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if c.Output.BigQueryTable != "" && strings.Count(c.Output.BigQueryTable, ".") != 2 {
		return fmt.Errorf("output.bigquery_table must be project.dataset.table, got %q", c.Output.BigQueryTable)
	}

	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid schedule.cron %q: %w", c.Schedule.Cron, err)
		}
	}
	switch c.Schedule.Command {
	case "", "run", "suggest":
	default:
		return fmt.Errorf("schedule.command must be run or suggest, got %q", c.Schedule.Command)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	return nil
}

// GeneratorConfig maps the analysis section onto the heuristic generator.
func (c *Config) GeneratorConfig(logger *zap.Logger) analysis.Config {
	return analysis.Config{
		SizeThresholdGB:    c.Analysis.TableSizeThresholdGB,
		ScanRatioThreshold: c.Analysis.ScanRatioThreshold,
		MinQueryCount:      c.Analysis.MinQueryCount,
		Aggregate:          analysis.AggregateOptions{CountDuplicates: c.Analysis.CountDuplicateReferences},
		Logger:             logger,
	}
}

// LLMFactoryConfig maps the llm section onto the oracle factory.
func (c *Config) LLMFactoryConfig(logger *zap.Logger) llmfactory.Config {
	return llmfactory.Config{
		Provider:          c.LLM.Provider,
		OllamaEndpoint:    c.LLM.OllamaEndpoint,
		OllamaModel:       c.LLM.OllamaModel,
		AnthropicAPIKey:   c.LLM.AnthropicAPIKey,
		AnthropicModel:    c.LLM.AnthropicModel,
		AnthropicBaseURL:  c.LLM.AnthropicBaseURL,
		MaxTokens:         c.LLM.MaxTokens,
		Temperature:       c.LLM.Temperature,
		Timeout:           c.LLM.TimeoutSeconds,
		RequestsPerSecond: c.LLM.RequestsPerSecond,
		Logger:            logger,
	}
}

// VectorFactoryConfig maps the vector section onto the store factory.
func (c *Config) VectorFactoryConfig(logger *zap.Logger) vectorfactory.Config {
	return vectorfactory.Config{
		Backend:        c.Vector.Backend,
		Endpoint:       c.Vector.Endpoint,
		APIKey:         c.Vector.APIKey,
		Collection:     c.Vector.Collection,
		SQLitePath:     c.Vector.SQLitePath,
		TimeoutSeconds: c.Vector.TimeoutSeconds,
		Logger:         logger,
	}
}

// OutputOptions maps the output section onto file options.
func (c *Config) OutputOptions() output.Options {
	format, err := output.ParseFormat(c.Output.Format)
	if err != nil {
		format = output.FormatCSV
	}
	return output.Options{Format: format, Compress: c.Output.Compress}
}

// SinkConfig maps output.bigquery_table onto the suggestions sink. ok is
// false when no table is configured.
func (c *Config) SinkConfig(logger *zap.Logger) (cfg warehouse.SinkConfig, ok bool, err error) {
	if c.Output.BigQueryTable == "" {
		return cfg, false, nil
	}
	parts := strings.Split(c.Output.BigQueryTable, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return cfg, false, fmt.Errorf("output.bigquery_table must be project.dataset.table, got %q", c.Output.BigQueryTable)
	}
	return warehouse.SinkConfig{
		Project:       parts[0],
		Dataset:       parts[1],
		Table:         parts[2],
		Location:      c.Output.Location,
		RetentionDays: c.Output.RetentionDays,
		Logger:        logger,
	}, true, nil
}

// LLMTimeout is the per-call oracle timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// VectorTimeout is the per-call vector store timeout.
func (c *Config) VectorTimeout() time.Duration {
	return time.Duration(c.Vector.TimeoutSeconds) * time.Second
}

// ExampleConfig returns a commented example configuration file.
func ExampleConfig() string {
	return `# bqoptimizer configuration
# Priority: CLI flags > environment (BQOPT_*) > config file > defaults

project_id: my-project
lookback_days: 30
region: us

# Projects analyzed by "suggest". With organization_id set, ACTIVE projects
# of the organization are listed first and this list is the fallback.
projects: []
organization_id: ""
project_query: ""

analysis:
  table_size_threshold_gb: 0.01
  min_query_count: 0
  recommendation_limit: 100
  query_limit: 10
  scan_ratio_threshold: 0.5
  concurrency: 4
  count_duplicate_references: false

llm:
  enabled: true
  provider: ollama   # ollama, anthropic
  ollama_endpoint: http://127.0.0.1:11434
  ollama_model: llama3
  anthropic_model: claude-sonnet-4-5-20250929
  # anthropic_api_key: set via BQOPT_LLM_ANTHROPIC_API_KEY or ANTHROPIC_API_KEY
  temperature: 0.2
  max_tokens: 4096
  summary_max_tokens: 256
  schema_token_budget: 6000
  timeout_seconds: 120
  requests_per_second: 2

vector:
  enabled: true
  backend: qdrant    # qdrant, sqlite, memory
  endpoint: http://localhost:6333
  collection: bigquery_schemas
  dimension: 768
  # sqlite_path: ~/.bqoptimizer/vectors.db
  timeout_seconds: 30

output:
  recommendations_file: query_recommendations.csv
  metadata_file: table_metadata.csv
  queries_file: query_history.csv
  format: csv        # csv, xlsx
  compress: false
  bigquery_table: "" # project.dataset.table written by "suggest"
  location: US
  retention_days: 365

stages:
  skip_metadata: false
  skip_queries: false
  skip_vector_db: false

schedule:
  cron: "0 6 * * *"
  command: run

logging:
  level: info
  format: text
`
}
