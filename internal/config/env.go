package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/nibzard/clear-go/internal/utils"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CLEAR_"

// loadFromEnv overrides config from CLEAR_* environment variables.
// Malformed numbers are ignored, matching how unset variables behave.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) {
	mark := func(field string) {
		if sources != nil {
			sources[field] = SourceEnv
		}
	}
	str := func(name, field string, target *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*target = v
			mark(field)
		}
	}
	integer := func(name, field string, target *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*target = i
				mark(field)
			}
		}
	}
	boolean := func(name, field string, target *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*target = boolFromString(v)
			mark(field)
		}
	}

	str("DATA_PATH", "data_path", &cfg.DataPath)
	str("OUTPUT_DIR", "output_dir", &cfg.OutputDir)
	str("RUN_NAME", "run_name", &cfg.RunName)
	str("PROVIDER", "provider", &cfg.Provider)
	str("EVAL_MODEL", "eval_model_name", &cfg.EvalModelName)
	str("GEN_MODEL", "gen_model_name", &cfg.GenModelName)
	boolean("PERFORM_GENERATION", "perform_generation", &cfg.PerformGeneration)
	boolean("REFERENCE_BASED", "is_reference_based", &cfg.ReferenceBased)
	boolean("RESUME", "resume_enabled", &cfg.ResumeEnabled)
	boolean("ENHANCED_MCQ", "use_enhanced_mcq_evaluation", &cfg.EnhancedMCQ)
	integer("MAX_EXAMPLES", "max_examples_to_analyze", &cfg.MaxExamples)
	integer("MAX_SHORTCOMINGS", "max_shortcomings", &cfg.MaxShortcomings)
	if v := os.Getenv(EnvPrefix + "INPUT_COLUMNS"); v != "" {
		cfg.InputColumns = utils.SplitAndTrim(v, ",")
		mark("input_columns")
	}
	if v := os.Getenv(EnvPrefix + "EVALUATION_CRITERIA"); v != "" {
		var criteria map[string]string
		if err := json.Unmarshal([]byte(v), &criteria); err == nil {
			cfg.EvaluationCriteria = criteria
			mark("evaluation_criteria")
		}
	}

	// Parallel runner
	integer("MAX_WORKERS", "parallel.max_workers", &cfg.Parallel.MaxWorkers)
	integer("TASK_TIMEOUT", "parallel.task_timeout_seconds", &cfg.Parallel.TaskTimeoutSeconds)
	str("ERROR_PREFIX", "parallel.error_prefix", &cfg.Parallel.ErrorPrefix)
	boolean("INLINE_SINGLE_TASK", "parallel.inline_single_task", &cfg.Parallel.InlineSingleTask)

	// Provider overrides
	if v := os.Getenv(EnvPrefix + "BASE_URL"); v != "" {
		p := cfg.Providers.Get(cfg.Provider)
		p.BaseURL = v
		cfg.Providers.Set(cfg.Provider, p)
		mark("providers." + utils.NormalizeName(cfg.Provider) + ".base_url")
	}
	if v := os.Getenv(EnvPrefix + "CLI_BIN"); v != "" {
		p := cfg.Providers.Get("cli")
		p.Binary = v
		cfg.Providers.Set("cli", p)
		mark("providers.cli.binary")
	}
	if v := os.Getenv(EnvPrefix + "CLI_ARGS"); v != "" {
		p := cfg.Providers.Get("cli")
		p.Args = utils.SplitAndTrim(v, ",")
		cfg.Providers.Set("cli", p)
		mark("providers.cli.args")
	}

	str("PROMPT_DIR", "prompt_dir", &cfg.PromptDir)

	// Logging configuration
	str("LOG_DIR", "log_dir", &cfg.LogDir)
	str("LOG_LEVEL", "log_level", &cfg.LogLevel)
	str("LOG_FORMAT", "log_format", &cfg.LogFormat)
	boolean("LOG_TIMESTAMPS", "log_timestamps", &cfg.LogTimestamps)
	boolean("LOG_CALLER", "log_caller", &cfg.LogCaller)
}
