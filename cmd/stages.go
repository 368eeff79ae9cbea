package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nibzard/clear-go/internal/config"
	"github.com/nibzard/clear-go/internal/data"
	"github.com/nibzard/clear-go/internal/logging"
	"github.com/nibzard/clear-go/internal/pipeline"
	"github.com/nibzard/clear-go/internal/ui"
)

// session is one pipeline run with its run log.
type session struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	runLog   *logging.RunLogger
}

// openSession loads config and builds a pipeline whose events go to a fresh
// run log. A run log that cannot be created only disables logging to disk.
func (a *app) openSession(cmd *cobra.Command, stage string) (*session, error) {
	cws, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg := cws.Config

	runLog, err := logging.NewRunLogger(cfg.LogDir, cfg.ProjectRoot)
	if err != nil {
		a.logger.Warn("Run log disabled", "err", err)
		runLog = nil
	}

	var events logging.Writer = logging.NullWriter{}
	if runLog != nil {
		events = runLog
	}
	if cfg.LogLevel == "debug" {
		events = logging.NewMultiWriter(events, logging.NewConsoleWriter(a.logger))
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithRunLog(runLog),
		pipeline.WithEvents(events),
		pipeline.WithProgress(ui.NewProgress(a.stderr, a.logger)),
	}
	opts = append(opts, a.pipelineOpts...)

	s := &session{cfg: cfg, pipeline: pipeline.New(cfg, opts...), runLog: runLog}
	_ = runLog.Write(logging.Event{Type: logging.EventRunStart, Stage: stage, Content: cfg.RunName})
	if runLog != nil {
		a.logger.Debug("Run log", "path", runLog.LogPath)
	}
	a.logger.Info("Starting", "stage", stage, "run", cfg.RunName, "provider", cfg.Provider, "judge", cfg.EvalModelName)
	return s, nil
}

// close records the run outcome and closes the run log.
func (s *session) close(err error) {
	if s.runLog == nil {
		return
	}
	ev := logging.Event{Type: logging.EventRunEnd, Status: "ok"}
	if err != nil {
		ev.Status = "error"
		ev.Content = err.Error()
	}
	_ = s.runLog.Write(ev)
	_ = s.runLog.Close()
}

func (a *app) runCmd() *cobra.Command {
	var openDashboard bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run generation (optional), evaluation and aggregation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := a.openSession(cmd, "run")
			if err != nil {
				return err
			}
			defer func() { s.close(err) }()

			analysis, err := s.pipeline.RunAnalysis(cmd.Context())
			if err != nil {
				return err
			}
			path := s.pipeline.OutputPath(data.AnalysisFile)
			printAnalysis(a.stdout, analysis, path)
			if openDashboard && ui.IsTTY(a.stdout) {
				return ui.RunDashboard(cmd.Context(), data.NewStore(nil), path, ui.WithDashboardLogger(a.logger))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&openDashboard, "dashboard", false, "Open the dashboard when the run finishes")
	return cmd
}

func (a *app) generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate responses for every example",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := a.openSession(cmd, pipeline.StageGenerate)
			if err != nil {
				return err
			}
			defer func() { s.close(err) }()

			examples, err := s.pipeline.RunGeneration(cmd.Context())
			if err != nil {
				return err
			}
			failed := 0
			for _, ex := range examples {
				if ex.Failed() {
					failed++
				}
			}
			fmt.Fprintf(a.stdout, "Generated %d responses (%d failed)\n", len(examples)-failed, failed)
			fmt.Fprintf(a.stdout, "Output: %s\n", s.pipeline.OutputPath(data.GenerationsFile))
			return nil
		},
	}
}

func (a *app) evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Judge every response, generating first when configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := a.openSession(cmd, pipeline.StageEvaluate)
			if err != nil {
				return err
			}
			defer func() { s.close(err) }()

			evals, err := s.pipeline.RunEvaluation(cmd.Context())
			if err != nil {
				return err
			}
			failed := 0
			for _, ev := range evals {
				if ev.Failed() {
					failed++
				}
			}
			fmt.Fprintf(a.stdout, "Evaluated %d examples (%d failed)\n", len(evals)-failed, failed)
			fmt.Fprintf(a.stdout, "Output: %s\n", s.pipeline.OutputPath(data.EvaluationsFile))
			return nil
		},
	}
}

func (a *app) aggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate existing evaluations into scores and shortcomings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := a.openSession(cmd, pipeline.StageAggregate)
			if err != nil {
				return err
			}
			defer func() { s.close(err) }()

			analysis, err := s.pipeline.RunAggregation(cmd.Context())
			if err != nil {
				return err
			}
			printAnalysis(a.stdout, analysis, s.pipeline.OutputPath(data.AnalysisFile))
			return nil
		},
	}
}

// printAnalysis writes a plain-text run summary.
func printAnalysis(w io.Writer, a *data.Analysis, path string) {
	st := a.Stats
	fmt.Fprintf(w, "Run %s: %d examples, %d evaluated", a.RunName, st.Total, st.Evaluated)
	if st.GenerationFailed > 0 {
		fmt.Fprintf(w, ", %d generation failures", st.GenerationFailed)
	}
	if st.EvaluationFailed > 0 {
		fmt.Fprintf(w, ", %d evaluation failures", st.EvaluationFailed)
	}
	fmt.Fprintln(w)
	if st.Evaluated > 0 {
		fmt.Fprintf(w, "Mean score %.3f (min %.2f, max %.2f)\n", st.MeanScore, st.MinScore, st.MaxScore)
	}
	if len(a.Shortcomings) > 0 {
		fmt.Fprintln(w, "Shortcomings:")
		for _, sc := range a.Shortcomings {
			fmt.Fprintf(w, "  %5.1f%%  %s\n", sc.Frequency*100, sc.Text)
		}
	}
	for _, warn := range a.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn)
	}
	fmt.Fprintf(w, "Analysis: %s\n", path)
	fmt.Fprintf(w, "View with: clear dashboard %s\n", filepath.Dir(path))
}
