package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ProjectDir is searched for a project config file and a .env file.
	// Defaults to the working directory.
	ProjectDir string
	// ConfigFile is an explicit config file applied after the project file.
	// A --config flag, when set, takes its place.
	ConfigFile string
	// Flags holds parsed CLI flags. Only flags the user changed are applied.
	Flags *pflag.FlagSet
	// SkipUserConfig disables the user-level config lookup.
	SkipUserConfig bool
	// SkipDotEnv disables loading <ProjectDir>/.env.
	SkipDotEnv bool
}

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.clear/clear.toml or OS-specific config dir)
// 3. Project config file (clear.toml, .clear.toml or clear.yaml)
// 4. Explicit config file (--config)
// 5. .env file and CLEAR_* environment variables
// 6. CLI flags
func Load(opts LoadOptions) (*Config, error) {
	cws, err := LoadWithSources(opts)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
func LoadWithSources(opts LoadOptions) (*ConfigWithSources, error) {
	projectDir := opts.ProjectDir
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		projectDir = wd
	}

	cws := &ConfigWithSources{
		Config:  &Config{},
		Sources: make(map[string]ConfigSource),
	}
	cfg := cws.Config

	// 1. Defaults
	setDefaults(cfg)
	for _, field := range configFields() {
		cws.Sources[field] = SourceDefault
	}

	// 2. User config file
	if !opts.SkipUserConfig {
		if path := findUserConfigFile(); path != "" {
			if err := cws.applyFile(path, SourceUserFile); err != nil {
				return nil, fmt.Errorf("loading user config file %s: %w", path, err)
			}
		}
	}

	// 3. Project config file (overrides user config)
	if path := findProjectConfigFile(projectDir); path != "" {
		if err := cws.applyFile(path, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", path, err)
		}
	}

	// 4. Explicit config file
	explicit := opts.ConfigFile
	if opts.Flags != nil && opts.Flags.Changed("config") {
		if v, err := opts.Flags.GetString("config"); err == nil {
			explicit = v
		}
	}
	if explicit != "" {
		path := expandPath(explicit)
		if err := cws.applyFile(path, SourceExplicit); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// 5. Environment, with .env filling in unset variables
	if !opts.SkipDotEnv {
		if err := loadDotEnv(projectDir); err != nil {
			return nil, err
		}
	}
	loadFromEnv(cfg, cws.Sources)

	// 6. CLI flags (they override everything)
	if err := applyFlags(cfg, opts.Flags, cws.Sources); err != nil {
		return nil, fmt.Errorf("applying flags: %w", err)
	}

	// 7. Derived values
	if err := finalizeConfig(cfg, projectDir); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cws, nil
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"data_path",
		"output_dir",
		"run_name",
		"provider",
		"eval_model_name",
		"gen_model_name",
		"perform_generation",
		"is_reference_based",
		"resume_enabled",
		"use_enhanced_mcq_evaluation",
		"evaluation_criteria",
		"max_examples_to_analyze",
		"max_shortcomings",
		"input_columns",
		"columns.id",
		"columns.model_input",
		"columns.response",
		"columns.reference",
		"parallel.max_workers",
		"parallel.task_timeout_seconds",
		"parallel.error_prefix",
		"parallel.inline_single_task",
		"prompt_dir",
		"log_dir",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
	}
}

// applyFile overlays a TOML or YAML file onto the config and records the
// keys it set.
func (cws *ConfigWithSources) applyFile(path string, source ConfigSource) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	raw := map[string]interface{}{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, cws.Config); err != nil {
			return err
		}
	default:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return err
		}
		if _, err := toml.Decode(string(data), cws.Config); err != nil {
			return err
		}
	}
	for _, key := range flattenKeys("", raw) {
		cws.Sources[key] = source
	}
	cws.Files = append(cws.Files, path)
	return nil
}

// loadDotEnv loads <dir>/.env when present. Variables already set in the
// environment are left untouched.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.OutputDir = DefaultOutputDir
	cfg.RunName = DefaultRunName
	cfg.Provider = DefaultProvider
	cfg.EvalModelName = DefaultEvalModel
	cfg.PerformGeneration = false
	cfg.ReferenceBased = false
	cfg.ResumeEnabled = true
	cfg.MaxShortcomings = DefaultMaxShortcomings
	cfg.LogDir = DefaultLogDir
	cfg.LogLevel = "info"
	cfg.LogFormat = "text"

	cfg.Columns = ColumnsConfig{
		ID:        "id",
		Input:     "model_input",
		Response:  "response",
		Reference: "reference",
	}
	cfg.Parallel = ParallelConfig{
		MaxWorkers:         DefaultMaxWorkers,
		TaskTimeoutSeconds: DefaultTaskTimeout,
		ErrorPrefix:        DefaultErrorPrefix,
	}

	cfg.Providers.Set("azure", Provider{APIKeyEnv: "AZURE_OPENAI_API_KEY", APIVersion: "2024-08-01-preview"})
	cfg.Providers.Set("openai", Provider{APIKeyEnv: "OPENAI_API_KEY"})
	cfg.Providers.Set("rits", Provider{APIKeyEnv: "RITS_API_KEY"})
	cfg.Providers.Set("watsonx", Provider{APIKeyEnv: "WATSONX_APIKEY"})
	cfg.Providers.Set("anthropic", Provider{APIKeyEnv: "ANTHROPIC_API_KEY", MaxTokens: 4096})
	cfg.Providers.Set("ollama", Provider{BaseURL: "http://localhost:11434"})
	cfg.Providers.Set("gemini", Provider{APIKeyEnv: "GEMINI_API_KEY"})
	cfg.Providers.Set("cli", Provider{PromptFormat: PromptFormatStdin})
}

// finalizeConfig computes derived values and resolves paths.
func finalizeConfig(cfg *Config, projectDir string) error {
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.PromptDir = expandPath(cfg.PromptDir)
	cfg.DataPath = expandPath(cfg.DataPath)
	cfg.OutputDir = expandPath(cfg.OutputDir)

	if cfg.ProjectRoot == "" {
		abs, err := filepath.Abs(projectDir)
		if err != nil {
			return fmt.Errorf("resolving project dir: %w", err)
		}
		cfg.ProjectRoot = abs
	}

	// Make paths absolute if they're relative
	if cfg.DataPath != "" && !filepath.IsAbs(cfg.DataPath) {
		cfg.DataPath = filepath.Join(cfg.ProjectRoot, cfg.DataPath)
	}
	if !filepath.IsAbs(cfg.OutputDir) {
		cfg.OutputDir = filepath.Join(cfg.ProjectRoot, cfg.OutputDir)
	}

	if cfg.GenModelName == "" {
		cfg.GenModelName = cfg.EvalModelName
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	return nil
}
