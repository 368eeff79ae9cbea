package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nibzard/clear-go/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or scaffold configuration",
	}
	cmd.AddCommand(a.configShowCmd(), a.configExampleCmd(), a.configValidateCmd())
	return cmd
}

func (a *app) configShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cws, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(a.stdout)
				enc.SetIndent(2)
				if err := enc.Encode(cws.Config); err != nil {
					return fmt.Errorf("encode config: %w", err)
				}
				return enc.Close()
			case "", "table":
				return a.printSources(cws)
			default:
				return fmt.Errorf("unknown format %q (expected table or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table or yaml)")
	return cmd
}

func (a *app) printSources(cws *config.ConfigWithSources) error {
	if len(cws.Files) > 0 {
		fmt.Fprintf(a.stdout, "Config files: %s\n\n", strings.Join(cws.Files, ", "))
	}
	values := configValues(cws.Config)
	keys := make([]string, 0, len(cws.Sources))
	for k := range cws.Sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k, v, cws.Sources[k])
	}
	return tw.Flush()
}

// configValues renders the tracked config keys as display strings.
func configValues(cfg *config.Config) map[string]string {
	criteria := make([]string, 0, len(cfg.EvaluationCriteria))
	for name := range cfg.EvaluationCriteria {
		criteria = append(criteria, name)
	}
	sort.Strings(criteria)

	return map[string]string{
		"data_path":                     cfg.DataPath,
		"output_dir":                    cfg.OutputDir,
		"run_name":                      cfg.RunName,
		"provider":                      cfg.Provider,
		"eval_model_name":               cfg.EvalModelName,
		"gen_model_name":                cfg.GenModelName,
		"perform_generation":            fmt.Sprint(cfg.PerformGeneration),
		"is_reference_based":            fmt.Sprint(cfg.ReferenceBased),
		"resume_enabled":                fmt.Sprint(cfg.ResumeEnabled),
		"use_enhanced_mcq_evaluation":   fmt.Sprint(cfg.EnhancedMCQ),
		"evaluation_criteria":           strings.Join(criteria, ","),
		"max_examples_to_analyze":       fmt.Sprint(cfg.MaxExamples),
		"max_shortcomings":              fmt.Sprint(cfg.MaxShortcomings),
		"input_columns":                 strings.Join(cfg.InputColumns, ","),
		"columns.id":                    cfg.Columns.ID,
		"columns.model_input":           cfg.Columns.Input,
		"columns.response":              cfg.Columns.Response,
		"columns.reference":             cfg.Columns.Reference,
		"parallel.max_workers":          fmt.Sprint(cfg.Parallel.MaxWorkers),
		"parallel.task_timeout_seconds": fmt.Sprint(cfg.Parallel.TaskTimeoutSeconds),
		"parallel.error_prefix":         fmt.Sprintf("%q", cfg.Parallel.ErrorPrefix),
		"parallel.inline_single_task":   fmt.Sprint(cfg.Parallel.InlineSingleTask),
		"prompt_dir":                    cfg.PromptDir,
		"log_dir":                       cfg.LogDir,
		"log_level":                     cfg.LogLevel,
		"log_format":                    cfg.LogFormat,
		"log_timestamps":                fmt.Sprint(cfg.LogTimestamps),
		"log_caller":                    fmt.Sprint(cfg.LogCaller),
	}
}

func (a *app) configExampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example",
		Short: "Print an example clear.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(a.stdout, config.ExampleConfig())
			return err
		},
	}
}

func (a *app) configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.loadConfig(cmd); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "Configuration is valid.")
			return nil
		},
	}
}
