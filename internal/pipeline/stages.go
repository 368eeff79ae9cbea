package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nibzard/clear-go/internal/data"
	"github.com/nibzard/clear-go/internal/parallel"
	"github.com/nibzard/clear-go/internal/prompts"
	"github.com/nibzard/clear-go/internal/providers"
)

// ErrNoDataPath is returned when a stage needs the dataset but none is configured.
var ErrNoDataPath = errors.New("data_path is not set")

func (p *Pipeline) loadDataset() ([]data.Example, error) {
	if p.cfg.DataPath == "" {
		return nil, ErrNoDataPath
	}
	examples, err := p.store.LoadExamples(p.cfg.DataPath, data.LoadOptionsFromConfig(p.cfg))
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	p.logger.Info("Loaded dataset", "path", p.cfg.DataPath, "examples", len(examples))
	return examples, nil
}

// skipText renders a failure that happened before a task could be submitted,
// in the same form as runner failures.
func (p *Pipeline) skipText(index int, id string, err error) string {
	return p.failureText(&parallel.TaskError{Index: index, ID: id, Reason: parallel.ReasonError, Err: err})
}

// RunGeneration produces a response for every dataset example and writes
// generations.csv. With resume enabled an existing file is reused.
func (p *Pipeline) RunGeneration(ctx context.Context) ([]data.Example, error) {
	out := p.OutputPath(data.GenerationsFile)
	if p.cfg.ResumeEnabled && p.store.Exists(out) {
		examples, err := p.store.ReadGenerations(out)
		if err == nil {
			p.logger.Info("Reusing generations", "path", out, "examples", len(examples))
			p.endStage(StageSummary{Stage: StageGenerate, Total: len(examples), Resumed: true, Output: out}, time.Now())
			return examples, nil
		}
		p.logger.Warn("Ignoring unreadable generations file", "path", out, "err", err)
	}

	examples, err := p.loadDataset()
	if err != nil {
		return nil, err
	}
	gen, err := p.generatorProvider(ctx)
	if err != nil {
		return nil, err
	}

	started := p.startStage(StageGenerate, len(examples))
	summary := StageSummary{Stage: StageGenerate, Total: len(examples), Output: out}

	jobs := make([]job, 0, len(examples))
	for i, ex := range examples {
		prompt, err := p.renderer.Render(prompts.GenerationPrompt, prompts.Data{ModelInput: ex.Input})
		if err != nil {
			examples[i].Error = p.skipText(i, ex.ID, err)
			summary.Failed++
			summary.Skipped++
			continue
		}
		jobs = append(jobs, job{index: i, id: ex.ID, prompt: prompt})
	}

	p.logger.Info("Generating responses", "model", gen.Name(), "examples", len(jobs))
	results := runJobs(ctx, p, StageGenerate, "Generating responses", gen, jobs, identity, &summary)
	if err := p.checkContext(ctx); err != nil {
		return nil, err
	}
	for k, r := range results {
		i := jobs[k].index
		if !r.OK() {
			examples[i].Response = ""
			examples[i].Error = p.failureText(r.Err)
			continue
		}
		examples[i].Response = strings.TrimSpace(r.Value)
		examples[i].Error = ""
	}

	if err := p.store.WriteGenerations(out, examples); err != nil {
		return nil, fmt.Errorf("write generations: %w", err)
	}
	p.endStage(summary, started)
	return examples, nil
}

// RunEvaluation judges every response and writes evaluations.csv. When
// generation is enabled responses are produced first; otherwise they are read
// from the dataset. With resume enabled an existing file is reused.
func (p *Pipeline) RunEvaluation(ctx context.Context) ([]data.Evaluation, error) {
	out := p.OutputPath(data.EvaluationsFile)
	if p.cfg.ResumeEnabled && p.store.Exists(out) {
		evals, err := p.store.ReadEvaluations(out)
		if err == nil {
			p.logger.Info("Reusing evaluations", "path", out, "examples", len(evals))
			p.endStage(StageSummary{Stage: StageEvaluate, Total: len(evals), Resumed: true, Output: out}, time.Now())
			return evals, nil
		}
		p.logger.Warn("Ignoring unreadable evaluations file", "path", out, "err", err)
	}

	var examples []data.Example
	var err error
	if p.cfg.PerformGeneration {
		examples, err = p.RunGeneration(ctx)
	} else {
		examples, err = p.loadDataset()
	}
	if err != nil {
		return nil, err
	}
	return p.evaluate(ctx, examples, out)
}

func (p *Pipeline) evaluate(ctx context.Context, examples []data.Example, out string) ([]data.Evaluation, error) {
	judge, err := p.judgeProvider(ctx)
	if err != nil {
		return nil, err
	}

	started := p.startStage(StageEvaluate, len(examples))
	summary := StageSummary{Stage: StageEvaluate, Total: len(examples), Output: out}

	evals := make([]data.Evaluation, len(examples))
	jobs := make([]job, 0, len(examples))
	for i, ex := range examples {
		evals[i].Example = ex
		if ex.Failed() {
			evals[i].Error = ex.Error
			summary.Skipped++
			continue
		}
		name, pd := p.evaluationPrompt(ex)
		prompt, err := p.renderer.Render(name, pd)
		if err != nil {
			evals[i].Error = p.skipText(i, ex.ID, err)
			summary.Failed++
			summary.Skipped++
			continue
		}
		jobs = append(jobs, job{index: i, id: ex.ID, prompt: prompt})
	}

	p.logger.Info("Evaluating responses", "judge", judge.Name(), "examples", len(jobs))
	results := runJobs(ctx, p, StageEvaluate, "Evaluating responses", judge, jobs, ParseJudgement, &summary)
	if err := p.checkContext(ctx); err != nil {
		return nil, err
	}
	for k, r := range results {
		i := jobs[k].index
		if !r.OK() {
			evals[i].Error = p.failureText(r.Err)
			continue
		}
		evals[i].Score = r.Value.Score
		evals[i].Text = r.Value.Text
	}

	if err := p.store.WriteEvaluations(out, evals); err != nil {
		return nil, fmt.Errorf("write evaluations: %w", err)
	}
	p.endStage(summary, started)
	return evals, nil
}

// evaluationPrompt picks the judge template for an example. Option-style
// answers with a reference use the multiple-choice template when enabled.
func (p *Pipeline) evaluationPrompt(ex data.Example) (string, prompts.Data) {
	criteria := p.cfg.EvaluationCriteria
	if p.cfg.EnhancedMCQ && ex.Reference != "" && prompts.IsOptionResponse(ex.Response) {
		return prompts.MCQEvaluationPrompt, prompts.NewMCQData(ex.Input, ex.Response, ex.Reference, criteria)
	}
	if p.cfg.ReferenceBased {
		return prompts.ReferenceEvaluationPrompt, prompts.NewEvaluationData(ex.Input, ex.Response, ex.Reference, criteria)
	}
	return prompts.EvaluationPrompt, prompts.NewEvaluationData(ex.Input, ex.Response, "", criteria)
}

// RunAggregation aggregates an existing evaluations.csv into analysis.json.
func (p *Pipeline) RunAggregation(ctx context.Context) (*data.Analysis, error) {
	path := p.OutputPath(data.EvaluationsFile)
	evals, err := p.store.ReadEvaluations(path)
	if err != nil {
		return nil, fmt.Errorf("load evaluations (run evaluate first): %w", err)
	}
	return p.aggregate(ctx, evals)
}

// RunAnalysis runs every stage: generation when enabled, evaluation and
// aggregation.
func (p *Pipeline) RunAnalysis(ctx context.Context) (*data.Analysis, error) {
	evals, err := p.RunEvaluation(ctx)
	if err != nil {
		return nil, err
	}
	return p.aggregate(ctx, evals)
}

func (p *Pipeline) aggregate(ctx context.Context, evals []data.Evaluation) (*data.Analysis, error) {
	out := p.OutputPath(data.AnalysisFile)
	started := p.startStage(StageAggregate, len(evals))
	summary := StageSummary{Stage: StageAggregate, Total: len(evals), Output: out}

	analysis := &data.Analysis{
		RunName:   p.cfg.RunName,
		Provider:  p.cfg.Provider,
		EvalModel: p.cfg.EvalModelName,
		CreatedAt: time.Now().UTC(),
	}
	if p.cfg.PerformGeneration {
		analysis.GenModel = p.cfg.GenModelName
	}

	var judged []int
	var scores []float64
	for i, ev := range evals {
		if !ev.Failed() && !ev.Example.Failed() {
			judged = append(judged, i)
			scores = append(scores, ev.Score)
		}
	}

	matches := make([][]bool, len(evals))
	var shortcomings []string
	if len(judged) == 0 {
		analysis.Warnings = append(analysis.Warnings, "no successful evaluations to aggregate")
	} else {
		judge, err := p.judgeProvider(ctx)
		if err != nil {
			return nil, err
		}
		shortcomings, err = p.synthesize(ctx, judge, evals, judged, &summary)
		if err != nil {
			p.logger.Warn("Shortcoming synthesis failed", "err", err)
			analysis.Warnings = append(analysis.Warnings, "shortcoming synthesis failed: "+err.Error())
		} else {
			p.mapShortcomings(ctx, judge, evals, judged, shortcomings, matches, &summary)
		}
	}
	if err := p.checkContext(ctx); err != nil {
		return nil, err
	}

	var matched []int
	if len(shortcomings) > 0 {
		matched = make([]int, len(evals))
		for i := range matched {
			matched[i] = -1
			if matches[i] != nil {
				matched[i] = countTrue(matches[i])
			}
		}
	}
	analysis.Stats = ComputeStats(evals, matched)
	analysis.Histogram = Histogram(scores, HistogramBins)
	analysis.Shortcomings = ShortcomingFrequencies(shortcomings, matches)
	analysis.Examples = exampleResults(evals, shortcomings, matches)

	if err := p.store.WriteAnalysis(out, analysis); err != nil {
		return nil, fmt.Errorf("write analysis: %w", err)
	}
	p.endStage(summary, started)
	return analysis, nil
}

// synthesize asks the judge for the recurring shortcomings across all
// evaluation texts in a single call.
func (p *Pipeline) synthesize(ctx context.Context, judge providers.Provider, evals []data.Evaluation, judged []int, summary *StageSummary) ([]string, error) {
	var b strings.Builder
	n := 0
	for _, i := range judged {
		text := strings.TrimSpace(evals[i].Text)
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "Evaluation %d (ID %s):\n%s\n\n", n, evals[i].ID, text)
	}
	if n == 0 {
		return nil, errors.New("no evaluation texts")
	}

	prompt, err := p.renderer.Render(prompts.ShortcomingsSynthesisPrompt, prompts.Data{
		EvaluationTexts: strings.TrimSpace(b.String()),
		MaxShortcomings: p.cfg.MaxShortcomings,
		MCQ:             p.cfg.EnhancedMCQ,
	})
	if err != nil {
		return nil, err
	}

	parse := func(raw string) ([]string, error) {
		return ParseShortcomings(raw, p.cfg.MaxShortcomings)
	}
	results := runJobs(ctx, p, StageSynthesis, "Synthesizing shortcomings", judge,
		[]job{{id: "shortcomings", prompt: prompt}}, parse, summary)
	if r := results[0]; !r.OK() {
		return nil, r.Err
	}
	p.logger.Info("Synthesized shortcomings", "count", len(results[0].Value))
	return results[0].Value, nil
}

// mapShortcomings asks the judge, per evaluation, which shortcomings it
// exhibits. matches[i] stays nil when evals[i] could not be mapped.
func (p *Pipeline) mapShortcomings(ctx context.Context, judge providers.Provider, evals []data.Evaluation, judged []int, shortcomings []string, matches [][]bool, summary *StageSummary) {
	jobs := make([]job, 0, len(judged))
	for _, i := range judged {
		prompt, err := p.renderer.Render(prompts.ShortcomingsMappingPrompt, prompts.Data{
			EvaluationText: evals[i].Text,
			Shortcomings:   shortcomings,
		})
		if err != nil {
			p.logger.Debug("Skipping mapping", "id", evals[i].ID, "err", err)
			summary.Skipped++
			continue
		}
		jobs = append(jobs, job{index: i, id: evals[i].ID, prompt: prompt})
	}

	parse := func(raw string) ([]bool, error) {
		return ParseMatches(raw, len(shortcomings))
	}
	results := runJobs(ctx, p, StageMapping, "Mapping shortcomings", judge, jobs, parse, summary)
	for k, r := range results {
		if r.OK() {
			matches[jobs[k].index] = r.Value
		}
	}
}

func exampleResults(evals []data.Evaluation, shortcomings []string, matches [][]bool) []data.ExampleResult {
	out := make([]data.ExampleResult, len(evals))
	for i, ev := range evals {
		res := data.ExampleResult{
			ID:         ev.ID,
			Input:      ev.Input,
			Response:   ev.Response,
			Reference:  ev.Reference,
			Extra:      ev.Extra,
			Evaluation: ev.Text,
		}
		switch {
		case ev.Example.Failed():
			res.Error = ev.Example.Error
		case ev.Failed():
			res.Error = ev.Error
		default:
			score := ev.Score
			res.Score = &score
		}
		for j, hit := range matches[i] {
			if hit && j < len(shortcomings) {
				res.Shortcomings = append(res.Shortcomings, shortcomings[j])
			}
		}
		out[i] = res
	}
	return out
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
