package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nibzard/clear-go/internal/utils"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceExplicit ConfigSource = "config file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	// Files lists the config files that were applied, in load order.
	Files []string
}

// Default values.
const (
	DefaultProvider        = "openai"
	DefaultEvalModel       = "gpt-4o"
	DefaultOutputDir       = "results"
	DefaultRunName         = "default"
	DefaultMaxShortcomings = 15
	DefaultMaxWorkers      = 10
	DefaultTaskTimeout     = 300
	DefaultErrorPrefix     = "Error: "
	DefaultLogDir          = "~/.clear"
)

// Providers lists the supported provider names.
var Providers = []string{"openai", "azure", "rits", "watsonx", "anthropic", "ollama", "gemini", "cli"}

// Config holds the full configuration for a clear run.
type Config struct {
	// Data
	DataPath  string `toml:"data_path" yaml:"data_path"`
	OutputDir string `toml:"output_dir" yaml:"output_dir" validate:"required"`
	RunName   string `toml:"run_name" yaml:"run_name" validate:"required"`

	// Models
	Provider      string `toml:"provider" yaml:"provider" validate:"required,oneof=openai azure rits watsonx anthropic ollama gemini cli"`
	EvalModelName string `toml:"eval_model_name" yaml:"eval_model_name"`
	GenModelName  string `toml:"gen_model_name" yaml:"gen_model_name"`

	// Pipeline behaviour
	PerformGeneration  bool              `toml:"perform_generation" yaml:"perform_generation"`
	ReferenceBased     bool              `toml:"is_reference_based" yaml:"is_reference_based"`
	ResumeEnabled      bool              `toml:"resume_enabled" yaml:"resume_enabled"`
	EnhancedMCQ        bool              `toml:"use_enhanced_mcq_evaluation" yaml:"use_enhanced_mcq_evaluation"`
	EvaluationCriteria map[string]string `toml:"evaluation_criteria" yaml:"evaluation_criteria"`
	MaxExamples        int               `toml:"max_examples_to_analyze" yaml:"max_examples_to_analyze" validate:"gte=0"`
	MaxShortcomings    int               `toml:"max_shortcomings" yaml:"max_shortcomings" validate:"gte=1"`
	InputColumns       []string          `toml:"input_columns" yaml:"input_columns"`
	Columns            ColumnsConfig     `toml:"columns" yaml:"columns"`

	// Concurrency
	Parallel ParallelConfig `toml:"parallel" yaml:"parallel"`

	// Providers holds per-provider settings keyed by provider name.
	Providers ProvidersConfig `toml:"providers" yaml:"providers"`

	// Prompt template override directory
	PromptDir string `toml:"prompt_dir" yaml:"prompt_dir"`

	// Logging configuration
	LogDir        string `toml:"log_dir" yaml:"log_dir"`
	LogLevel      string `toml:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     string `toml:"log_format" yaml:"log_format" validate:"oneof=text json logfmt"`
	LogTimestamps bool   `toml:"log_timestamps" yaml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller" yaml:"log_caller"`

	// Project root (computed)
	ProjectRoot string `toml:"-" yaml:"-"`
}

// ColumnsConfig maps dataset roles to CSV column names.
type ColumnsConfig struct {
	ID        string `toml:"id" yaml:"id" validate:"required"`
	Input     string `toml:"model_input" yaml:"model_input" validate:"required"`
	Response  string `toml:"response" yaml:"response" validate:"required"`
	Reference string `toml:"reference" yaml:"reference"`
}

// ParallelConfig holds settings for the bounded task runner.
type ParallelConfig struct {
	MaxWorkers         int    `toml:"max_workers" yaml:"max_workers" validate:"gte=1"`
	TaskTimeoutSeconds int    `toml:"task_timeout_seconds" yaml:"task_timeout_seconds" validate:"gte=0"`
	ErrorPrefix        string `toml:"error_prefix" yaml:"error_prefix"`
	InlineSingleTask   bool   `toml:"inline_single_task" yaml:"inline_single_task"`
}

// PromptFormat specifies how the prompt is passed to a cli provider.
type PromptFormat string

const (
	// PromptFormatStdin passes the prompt via stdin.
	PromptFormatStdin PromptFormat = "stdin"
	// PromptFormatArg passes the prompt as a command-line argument.
	PromptFormatArg PromptFormat = "arg"
)

// Provider holds configuration for a single provider.
type Provider struct {
	Binary       string       `toml:"binary" yaml:"binary"`
	Args         []string     `toml:"args" yaml:"args"`
	PromptFormat PromptFormat `toml:"prompt_format" yaml:"prompt_format"`
	BaseURL      string       `toml:"base_url" yaml:"base_url"`
	APIKeyEnv    string       `toml:"api_key_env" yaml:"api_key_env"` // Name of the env var holding the key
	APIVersion   string       `toml:"api_version" yaml:"api_version"`
	Temperature  *float64     `toml:"temperature" yaml:"temperature"`
	MaxTokens    int          `toml:"max_tokens" yaml:"max_tokens"`
}

// ProvidersConfig is a map keyed by provider name.
// Later layers merge into earlier ones field by field.
type ProvidersConfig map[string]Provider

// UnmarshalTOML merges a providers table into the existing map.
func (pc *ProvidersConfig) UnmarshalTOML(data interface{}) error {
	table, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("providers config must be a table")
	}
	if *pc == nil {
		*pc = ProvidersConfig{}
	}
	return mergeProviderTables(*pc, table)
}

// UnmarshalYAML merges a providers mapping into the existing map.
func (pc *ProvidersConfig) UnmarshalYAML(value *yaml.Node) error {
	var table map[string]interface{}
	if err := value.Decode(&table); err != nil {
		return fmt.Errorf("providers config must be a mapping: %w", err)
	}
	if *pc == nil {
		*pc = ProvidersConfig{}
	}
	return mergeProviderTables(*pc, table)
}

// Get returns the configuration for a given provider.
func (pc ProvidersConfig) Get(name string) Provider {
	if pc == nil {
		return Provider{}
	}
	return pc[utils.NormalizeName(name)]
}

// Set sets the configuration for a given provider.
func (pc *ProvidersConfig) Set(name string, p Provider) {
	key := utils.NormalizeName(name)
	if key == "" {
		return
	}
	if *pc == nil {
		*pc = ProvidersConfig{}
	}
	(*pc)[key] = p
}
