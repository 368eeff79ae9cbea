package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nibzard/clear-go/internal/logging"
)

func (a *app) logsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
		list   bool
	)
	cmd := &cobra.Command{
		Use:   "logs [run-id]",
		Short: "Show the JSONL log of the latest or a given run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cws, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg := cws.Config
			logDir, err := logging.FindLogDir(cfg.LogDir, cfg.ProjectRoot)
			if err != nil {
				return fmt.Errorf("finding log directory: %w", err)
			}

			if list {
				return a.listRuns(logDir)
			}

			var logPath string
			if len(args) == 1 {
				logPath, err = findRunLog(logDir, args[0])
			} else {
				logPath, err = logging.FindLatestLog(logDir)
			}
			if err != nil {
				return err
			}
			if logPath == "" {
				fmt.Fprintln(a.stdout, "No log files found.")
				return nil
			}

			fmt.Fprintf(a.stderr, "Tailing: %s\n", logPath)
			if follow {
				fmt.Fprintln(a.stderr, "(Ctrl+C to stop)")
			}
			return logging.TailLog(cmd.Context(), a.stdout, logPath, lines, follow)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow the log (like tail -f)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Number of lines to show (0 = all)")
	cmd.Flags().BoolVar(&list, "list", false, "List runs instead of showing a log")
	return cmd
}

func (a *app) listRuns(logDir string) error {
	runs, err := logging.FindLogRuns(logDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "No runs found.")
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tUPDATED\tSTAGES")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", run.RunID, run.ModTime.Local().Format("2006-01-02 15:04:05"), summaryStages(run))
	}
	return tw.Flush()
}

// summaryStages lists the stages a run wrote summaries for.
func summaryStages(run logging.LogRun) string {
	if len(run.SummaryFiles) == 0 {
		return "-"
	}
	stages := make([]string, 0, len(run.SummaryFiles))
	for _, path := range run.SummaryFiles {
		name := strings.TrimSuffix(filepath.Base(path), ".summary.json")
		stages = append(stages, strings.TrimPrefix(name, run.RunID+"-"))
	}
	return strings.Join(stages, ",")
}

// findRunLog returns the log of the run whose ID starts with prefix.
func findRunLog(logDir, prefix string) (string, error) {
	runs, err := logging.FindLogRuns(logDir)
	if err != nil {
		return "", err
	}
	var matches []logging.LogRun
	for _, run := range runs {
		if strings.HasPrefix(run.RunID, prefix) && run.LogFile != "" {
			matches = append(matches, run)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no run matches %q", prefix)
	case 1:
		return matches[0].LogFile, nil
	default:
		return "", fmt.Errorf("run id %q is ambiguous (%d matches)", prefix, len(matches))
	}
}
