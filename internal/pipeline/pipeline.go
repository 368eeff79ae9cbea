// Package pipeline runs the generate, evaluate and aggregate stages of an
// analysis over a dataset.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/clear-go/internal/config"
	"github.com/nibzard/clear-go/internal/data"
	"github.com/nibzard/clear-go/internal/logging"
	"github.com/nibzard/clear-go/internal/parallel"
	"github.com/nibzard/clear-go/internal/prompts"
	"github.com/nibzard/clear-go/internal/providers"
)

// Stage names used in logs and summaries.
const (
	StageGenerate  = "generate"
	StageEvaluate  = "evaluate"
	StageSynthesis = "synthesize"
	StageMapping   = "map"
	StageAggregate = "aggregate"
)

// SummaryWriter persists a per-stage summary document.
type SummaryWriter interface {
	WriteSummary(stage string, v any) error
}

// Pipeline owns the state shared by all stages of one run.
type Pipeline struct {
	cfg      *config.Config
	store    *data.Store
	renderer *prompts.Renderer
	logger   *log.Logger
	events   logging.Writer
	summary  SummaryWriter
	progress parallel.Progress

	providerMu sync.Mutex
	generator  providers.Provider
	judge      providers.Provider
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore sets the dataset and output store.
func WithStore(s *data.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithGenerator sets the provider that answers dataset inputs.
func WithGenerator(g providers.Provider) Option {
	return func(p *Pipeline) { p.generator = g }
}

// WithJudge sets the provider that evaluates responses.
func WithJudge(j providers.Provider) Option {
	return func(p *Pipeline) { p.judge = j }
}

// WithLogger sets the console logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithRunLog sends task events and stage summaries to a run log.
func WithRunLog(r *logging.RunLogger) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.events = r
			p.summary = r
		}
	}
}

// WithEvents sets the event writer.
func WithEvents(w logging.Writer) Option {
	return func(p *Pipeline) { p.events = w }
}

// WithProgress sets the progress reporter used by every batch.
func WithProgress(pr parallel.Progress) Option {
	return func(p *Pipeline) { p.progress = pr }
}

// New creates a pipeline. Providers not set through options are built from
// cfg on first use.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.store == nil {
		p.store = data.NewStore(nil)
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	if p.events == nil {
		p.events = logging.NullWriter{}
	}
	p.events = logging.Synchronized(p.events)
	if p.progress == nil {
		p.progress = parallel.NewLogProgress(p.logger)
	}
	p.renderer = prompts.NewRenderer(prompts.NewStore(cfg.PromptDir))
	return p
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// OutputPath returns the path of an output file in the run directory.
func (p *Pipeline) OutputPath(name string) string {
	return filepath.Join(p.cfg.RunDir(), name)
}

func (p *Pipeline) generatorProvider(ctx context.Context) (providers.Provider, error) {
	p.providerMu.Lock()
	defer p.providerMu.Unlock()
	if p.generator == nil {
		g, err := providers.NewGenerator(ctx, p.cfg)
		if err != nil {
			return nil, err
		}
		p.generator = g
	}
	return p.generator, nil
}

func (p *Pipeline) judgeProvider(ctx context.Context) (providers.Provider, error) {
	p.providerMu.Lock()
	defer p.providerMu.Unlock()
	if p.judge == nil {
		j, err := providers.NewJudge(ctx, p.cfg)
		if err != nil {
			return nil, err
		}
		p.judge = j
	}
	return p.judge, nil
}

func (p *Pipeline) runOptions(label string) []parallel.Option {
	return []parallel.Option{
		parallel.WithMaxWorkers(p.cfg.Parallel.MaxWorkers),
		parallel.WithErrorPrefix(p.cfg.Parallel.ErrorPrefix),
		parallel.WithTaskTimeout(p.cfg.TaskTimeout()),
		parallel.WithInlineSingleTask(p.cfg.Parallel.InlineSingleTask),
		parallel.WithProgressLabel(label),
		parallel.WithProgress(p.progress),
		parallel.WithLogger(p.logger),
	}
}

// failureText renders a task error in the prefixed form stored in outputs.
func (p *Pipeline) failureText(err *parallel.TaskError) string {
	return p.cfg.Parallel.ErrorPrefix + err.Error()
}

// StageSummary is written to the run log directory after each stage.
type StageSummary struct {
	Stage    string   `json:"stage"`
	Total    int      `json:"total"`
	Failed   int      `json:"failed"`
	TimedOut int      `json:"timed_out"`
	Skipped  int      `json:"skipped,omitempty"`
	Resumed  bool     `json:"resumed,omitempty"`
	Duration string   `json:"duration"`
	Output   string   `json:"output,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func (p *Pipeline) startStage(stage string, total int) time.Time {
	_ = p.events.Write(logging.Event{Type: logging.EventStageStart, Stage: stage, Total: total})
	return time.Now()
}

func (p *Pipeline) endStage(s StageSummary, started time.Time) {
	s.Duration = time.Since(started).Round(time.Millisecond).String()
	_ = p.events.Write(logging.Event{
		Type:   logging.EventStageEnd,
		Stage:  s.Stage,
		Total:  s.Total,
		Failed: s.Failed,
	})
	if p.summary != nil {
		if err := p.summary.WriteSummary(s.Stage, s); err != nil {
			p.logger.Warn("Could not write stage summary", "stage", s.Stage, "err", err)
		}
	}
	p.logger.Info("Stage finished", "stage", s.Stage, "total", s.Total, "failed", s.Failed, "duration", s.Duration)
}

// recordResults writes one task event per result and tallies failures.
func recordResults[T any](p *Pipeline, stage string, ids []string, results []parallel.Result[T], s *StageSummary) {
	for i, r := range results {
		ev := logging.Event{
			Type:       logging.EventTask,
			Stage:      stage,
			TaskID:     ids[i],
			Index:      i,
			Status:     "ok",
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			ev.Status = r.Err.Reason.String()
			ev.Content = r.Err.Error()
			s.Failed++
			if r.TimedOut() {
				s.TimedOut++
			}
			s.Errors = append(s.Errors, r.Err.Error())
		}
		_ = p.events.Write(ev)
	}
}

// job is one provider call: a rendered prompt and the example it belongs to.
type job struct {
	index  int
	id     string
	prompt string
}

// runJobs sends each job's prompt to provider through the bounded runner,
// passing (prompt, id) tuples so failures are reported by example id.
// parse turns a reply into a value; its errors fail the task.
func runJobs[T any](ctx context.Context, p *Pipeline, stage, label string, provider providers.Provider, jobs []job, parse func(string) (T, error), s *StageSummary) []parallel.Result[T] {
	tasks := make([]parallel.Args, len(jobs))
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		tasks[i] = parallel.Tuple(j.prompt, j.id)
		ids[i] = j.id
	}
	call := func(ctx context.Context, args parallel.Args) (T, error) {
		var zero T
		prompt, err := args.String(0)
		if err != nil {
			return zero, err
		}
		reply, err := provider.Generate(ctx, prompt)
		if err != nil {
			return zero, err
		}
		return parse(reply)
	}
	results := parallel.Run(ctx, call, tasks, p.runOptions(label)...)
	recordResults(p, stage, ids, results, s)
	return results
}

func identity(s string) (string, error) {
	return s, nil
}

func (p *Pipeline) checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}
