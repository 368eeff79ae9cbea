// Package cmd implements the clear command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nibzard/clear-go/internal/config"
	"github.com/nibzard/clear-go/internal/logging"
	"github.com/nibzard/clear-go/internal/pipeline"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Run executes the clear CLI.
func Run(ctx context.Context, args []string) error {
	return newApp(os.Stdout, os.Stderr).execute(ctx, args)
}

// app carries the state shared by every command of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// projectDir overrides the working directory for config lookup.
	projectDir     string
	skipUserConfig bool
	// pipelineOpts are appended to the options every stage command uses.
	pipelineOpts []pipeline.Option

	logger *log.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		logger: logging.NewConsoleLoggerTo(stderr, logging.DefaultConsoleOptions()),
	}
}

func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clear",
		Short: "Generate, judge and analyse LLM responses",
		Long: `clear runs a model over a CSV dataset, judges every response with an LLM,
and aggregates the judgements into scores and recurring shortcomings.

Configuration is read from defaults, ~/.clear/clear.toml, a project clear.toml,
--config, CLEAR_* environment variables and flags, in that order.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate("clear {{.Version}}\n")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.runCmd(),
		a.generateCmd(),
		a.evaluateCmd(),
		a.aggregateCmd(),
		a.dashboardCmd(),
		a.logsCmd(),
		a.doctorCmd(),
		a.configCmd(),
		a.versionCmd(),
	)
	return root
}

// loadConfig resolves configuration for cmd and rebuilds the console logger
// from it.
func (a *app) loadConfig(cmd *cobra.Command) (*config.ConfigWithSources, error) {
	cws, err := config.LoadWithSources(config.LoadOptions{
		ProjectDir:     a.projectDir,
		Flags:          cmd.Flags(),
		SkipUserConfig: a.skipUserConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := cws.Config
	opts := logging.DefaultConsoleOptions()
	opts.Level = logging.ParseLogLevel(cfg.LogLevel)
	opts.Formatter = logging.ParseLogFormatter(cfg.LogFormat)
	opts.ReportTimestamp = cfg.LogTimestamps
	opts.ReportCaller = cfg.LogCaller
	a.logger = logging.NewConsoleLoggerTo(a.stderr, opts)
	return cws, nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(a.stdout, "clear %s\n", Version)
			return err
		},
	}
}
