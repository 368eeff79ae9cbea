package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nibzard/clear-go/internal/data"
	"github.com/nibzard/clear-go/internal/ui"
)

func (a *app) dashboardCmd() *cobra.Command {
	var (
		noWatch bool
		refresh time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dashboard [run-dir|analysis.json]",
		Short: "Browse the analysis of a run",
		Long: `Browse the scores, shortcomings and per-example judgements of a run.
Without an argument the configured run directory is used. The view reloads
when analysis.json changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cws, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			target := cws.Config.RunDir()
			if len(args) == 1 {
				target = args[0]
			}
			path := analysisPath(target)
			return ui.RunDashboard(cmd.Context(), data.NewStore(nil), path,
				ui.WithWatch(!noWatch),
				ui.WithRefreshInterval(refresh),
				ui.WithDashboardLogger(a.logger),
			)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload when analysis.json changes")
	cmd.Flags().DurationVar(&refresh, "refresh", 0, "Also reload on this interval (0 disables)")
	return cmd
}

// analysisPath resolves a run directory or file argument to analysis.json.
func analysisPath(target string) string {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return filepath.Join(target, data.AnalysisFile)
	}
	if filepath.Ext(target) == "" {
		return filepath.Join(target, data.AnalysisFile)
	}
	return target
}
