package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nibzard/clear-go/internal/config"
	"github.com/nibzard/clear-go/internal/data"
	"github.com/nibzard/clear-go/internal/logging"
	"github.com/nibzard/clear-go/internal/prompts"
	"github.com/nibzard/clear-go/internal/providers"
)

// errDoctorFailed is returned when any doctor check fails.
var errDoctorFailed = errors.New("doctor checks failed")

func (a *app) doctorCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, provider access, dataset and prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := a.stdout
			fmt.Fprintln(w, "Clear Doctor")
			fmt.Fprintln(w, "============")
			fmt.Fprintln(w)

			cws, err := a.loadConfig(cmd)
			if err != nil {
				fmt.Fprintln(w, "Config:")
				fmt.Fprintf(w, "  ❌ %v\n\n", err)
				fmt.Fprintln(w, "⚠️  Some checks failed. Fix the configuration and run doctor again.")
				return errDoctorFailed
			}
			cfg := cws.Config

			d := &doctor{w: w, verbose: verbose}
			d.checkConfig(cws)
			d.checkProvider(cfg)
			d.checkDataset(cfg)
			d.checkPrompts(cfg)
			d.checkDirs(cfg)

			if d.ok {
				fmt.Fprintln(w, "✅ All checks passed!")
				return nil
			}
			fmt.Fprintln(w, "⚠️  Some checks failed. clear may not function correctly.")
			return errDoctorFailed
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	return cmd
}

// doctor prints check results and remembers whether any failed.
type doctor struct {
	w       io.Writer
	verbose bool
	ok      bool
	started bool
}

func (d *doctor) pass(format string, args ...any) {
	fmt.Fprintf(d.w, "  ✅ "+format+"\n", args...)
}

func (d *doctor) warn(format string, args ...any) {
	fmt.Fprintf(d.w, "  ⚠️  "+format+"\n", args...)
}

func (d *doctor) fail(format string, args ...any) {
	d.ok = false
	fmt.Fprintf(d.w, "  ❌ "+format+"\n", args...)
}

func (d *doctor) section(title string) {
	if !d.started {
		d.started = true
		d.ok = true
	} else {
		fmt.Fprintln(d.w)
	}
	fmt.Fprintln(d.w, title)
}

func (d *doctor) checkConfig(cws *config.ConfigWithSources) {
	d.section("Config:")
	if len(cws.Files) == 0 {
		d.warn("No config file found (using defaults, environment and flags)")
	}
	for _, f := range cws.Files {
		d.pass("Loaded %s", f)
	}
	d.pass("Valid")
	if d.verbose {
		cfg := cws.Config
		fmt.Fprintf(d.w, "  Project root: %s\n", cfg.ProjectRoot)
		fmt.Fprintf(d.w, "  Run directory: %s\n", cfg.RunDir())
		fmt.Fprintf(d.w, "  Workers: %d, task timeout: %s\n", cfg.Parallel.MaxWorkers, cfg.TaskTimeout())
	}
}

func (d *doctor) checkProvider(cfg *config.Config) {
	d.section(fmt.Sprintf("Provider: %s", cfg.Provider))

	registered := false
	for _, name := range providers.Registered() {
		if name == cfg.Provider {
			registered = true
			break
		}
	}
	if !registered {
		d.fail("Unsupported provider (supported: %s)", strings.Join(providers.Registered(), ", "))
		return
	}

	p := cfg.ActiveProvider()
	if cfg.Provider == "cli" {
		d.checkBinary(p.Binary)
	} else if cfg.EvalModelName == "" {
		d.fail("Judge model: not configured (set eval_model_name)")
	} else {
		d.pass("Judge model: %s", cfg.EvalModelName)
	}
	if cfg.PerformGeneration && cfg.GenModelName != "" {
		d.pass("Generator model: %s", cfg.GenModelName)
	}

	switch {
	case p.APIKeyEnv == "":
	case cfg.APIKey(cfg.Provider) == "":
		d.fail("API key: %s is not set", p.APIKeyEnv)
	default:
		d.pass("API key: %s is set", p.APIKeyEnv)
	}
	if p.BaseURL != "" {
		d.pass("Base URL: %s", p.BaseURL)
	} else if cfg.Provider == "azure" || cfg.Provider == "rits" || cfg.Provider == "watsonx" {
		d.fail("Base URL: not configured (set providers.%s.base_url)", cfg.Provider)
	}
}

func (d *doctor) checkBinary(binary string) {
	if strings.TrimSpace(binary) == "" {
		d.fail("Binary: not configured (set providers.cli.binary)")
		return
	}
	path := binary
	if _, err := os.Stat(binary); err != nil {
		resolved, err := providers.FindBinary(binary)
		if err != nil {
			d.fail("Binary: %v", err)
			return
		}
		path = resolved
	}
	if err := providers.ValidateBinary(path); err != nil {
		d.fail("Binary: %v", err)
		return
	}
	d.pass("Binary: %s", path)
}

func (d *doctor) checkDataset(cfg *config.Config) {
	d.section("Dataset:")
	if cfg.DataPath == "" {
		if cfg.ResumeEnabled {
			d.warn("data_path not configured (only existing run outputs can be reused)")
		} else {
			d.fail("data_path not configured")
		}
		return
	}
	examples, err := data.NewStore(nil).LoadExamples(cfg.DataPath, data.LoadOptionsFromConfig(cfg))
	if err != nil {
		d.fail("%v", err)
		return
	}
	d.pass("%s (%d examples)", cfg.DataPath, len(examples))
}

func (d *doctor) checkPrompts(cfg *config.Config) {
	d.section("Prompts:")
	store := prompts.NewStore(cfg.PromptDir)
	if err := prompts.NewRenderer(store).Check(); err != nil {
		d.fail("%v", err)
		return
	}
	d.pass("All templates parse")
	if d.verbose {
		for _, name := range prompts.Names() {
			fmt.Fprintf(d.w, "  %s: %s\n", name, store.Source(name))
		}
	}
}

func (d *doctor) checkDirs(cfg *config.Config) {
	d.section("Directories:")
	if info, err := os.Stat(cfg.RunDir()); err == nil && info.IsDir() {
		d.pass("Run directory: %s", cfg.RunDir())
	} else if err == nil {
		d.fail("Run directory is not a directory: %s", cfg.RunDir())
	} else {
		d.warn("Run directory: %s (will be created on run)", cfg.RunDir())
	}

	logDir, err := logging.FindLogDir(cfg.LogDir, cfg.ProjectRoot)
	if err != nil {
		d.fail("Log directory: %v", err)
	} else if _, err := os.Stat(logDir); err != nil {
		d.warn("Log directory: %s (will be created on run)", logDir)
	} else {
		d.pass("Log directory: %s", logDir)
	}
	fmt.Fprintln(d.w)
}
