package config

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/nibzard/clear-go/internal/utils"
)

// RegisterFlags defines the configuration flags on fs. Defaults shown in help
// are the built-in defaults; a flag only overrides lower layers when set.
func RegisterFlags(fs *pflag.FlagSet) {
	d := &Config{}
	setDefaults(d)

	fs.String("config", "", "Path to a TOML or YAML config file")
	fs.String("data-path", "", "Path to the input CSV dataset")
	fs.String("output-dir", d.OutputDir, "Directory for run outputs")
	fs.String("run-name", d.RunName, "Name of the run (output subdirectory)")
	fs.String("provider", d.Provider, fmt.Sprintf("Model provider %v", Providers))
	fs.String("eval-model-name", d.EvalModelName, "Model used as the judge")
	fs.String("gen-model-name", "", "Model used for generation (defaults to the judge model)")
	fs.Bool("perform-generations", d.PerformGeneration, "Generate responses before evaluating")
	fs.Bool("is-reference-based", d.ReferenceBased, "Judge responses against the reference column")
	fs.Bool("resume-enabled", d.ResumeEnabled, "Reuse intermediate results from an earlier run")
	fs.Bool("enhanced-mcq", d.EnhancedMCQ, "Use the multiple-choice evaluation prompt")
	fs.String("evaluation-criteria", "", `Evaluation criteria as JSON, e.g. {"correctness":"..."}`)
	fs.Int("max-examples-to-analyze", d.MaxExamples, "Limit the number of examples (0 = all)")
	fs.Int("max-shortcomings", d.MaxShortcomings, "Maximum number of shortcomings to synthesize")
	fs.StringSlice("input-columns", nil, "Extra dataset columns to show in the dashboard")
	fs.Int("max-workers", d.Parallel.MaxWorkers, "Maximum concurrent model calls")
	fs.Int("task-timeout", d.Parallel.TaskTimeoutSeconds, "Per-call timeout in seconds (0 disables)")
	fs.String("error-prefix", d.Parallel.ErrorPrefix, "Prefix marking failed results in CSV output")
	fs.Bool("inline-single-task", d.Parallel.InlineSingleTask, "Run a lone task inline without a timeout")
	fs.String("prompt-dir", "", "Directory with prompt template overrides")
	fs.String("log-dir", d.LogDir, "Directory for run logs")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-format", d.LogFormat, "Log format (text, json, logfmt)")
	fs.Bool("log-timestamps", d.LogTimestamps, "Include timestamps in console logs")
	fs.Bool("log-caller", d.LogCaller, "Include caller in console logs")
}

// applyFlags copies changed flags into cfg. Flags not defined on fs are skipped.
func applyFlags(cfg *Config, fs *pflag.FlagSet, sources map[string]ConfigSource) error {
	if fs == nil {
		return nil
	}
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}
	mark := func(field string) {
		if sources != nil {
			sources[field] = SourceFlag
		}
	}

	strFlags := []struct {
		flag, field string
		target      *string
	}{
		{"data-path", "data_path", &cfg.DataPath},
		{"output-dir", "output_dir", &cfg.OutputDir},
		{"run-name", "run_name", &cfg.RunName},
		{"provider", "provider", &cfg.Provider},
		{"eval-model-name", "eval_model_name", &cfg.EvalModelName},
		{"gen-model-name", "gen_model_name", &cfg.GenModelName},
		{"error-prefix", "parallel.error_prefix", &cfg.Parallel.ErrorPrefix},
		{"prompt-dir", "prompt_dir", &cfg.PromptDir},
		{"log-dir", "log_dir", &cfg.LogDir},
		{"log-level", "log_level", &cfg.LogLevel},
		{"log-format", "log_format", &cfg.LogFormat},
	}
	for _, f := range strFlags {
		if !changed(f.flag) {
			continue
		}
		v, err := fs.GetString(f.flag)
		if err != nil {
			return err
		}
		*f.target = v
		mark(f.field)
	}

	boolFlags := []struct {
		flag, field string
		target      *bool
	}{
		{"perform-generations", "perform_generation", &cfg.PerformGeneration},
		{"is-reference-based", "is_reference_based", &cfg.ReferenceBased},
		{"resume-enabled", "resume_enabled", &cfg.ResumeEnabled},
		{"enhanced-mcq", "use_enhanced_mcq_evaluation", &cfg.EnhancedMCQ},
		{"inline-single-task", "parallel.inline_single_task", &cfg.Parallel.InlineSingleTask},
		{"log-timestamps", "log_timestamps", &cfg.LogTimestamps},
		{"log-caller", "log_caller", &cfg.LogCaller},
	}
	for _, f := range boolFlags {
		if !changed(f.flag) {
			continue
		}
		v, err := fs.GetBool(f.flag)
		if err != nil {
			return err
		}
		*f.target = v
		mark(f.field)
	}

	intFlags := []struct {
		flag, field string
		target      *int
	}{
		{"max-examples-to-analyze", "max_examples_to_analyze", &cfg.MaxExamples},
		{"max-shortcomings", "max_shortcomings", &cfg.MaxShortcomings},
		{"max-workers", "parallel.max_workers", &cfg.Parallel.MaxWorkers},
		{"task-timeout", "parallel.task_timeout_seconds", &cfg.Parallel.TaskTimeoutSeconds},
	}
	for _, f := range intFlags {
		if !changed(f.flag) {
			continue
		}
		v, err := fs.GetInt(f.flag)
		if err != nil {
			return err
		}
		*f.target = v
		mark(f.field)
	}

	if changed("input-columns") {
		v, err := fs.GetStringSlice("input-columns")
		if err != nil {
			return err
		}
		cfg.InputColumns = utils.NormalizeNameList(v)
		mark("input_columns")
	}
	if changed("evaluation-criteria") {
		v, err := fs.GetString("evaluation-criteria")
		if err != nil {
			return err
		}
		var criteria map[string]string
		if err := json.Unmarshal([]byte(v), &criteria); err != nil {
			return fmt.Errorf("--evaluation-criteria must be a JSON object of strings: %w", err)
		}
		cfg.EvaluationCriteria = criteria
		mark("evaluation_criteria")
	}
	return nil
}
