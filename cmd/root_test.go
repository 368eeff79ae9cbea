package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nibzard/clear-go/internal/data"
	"github.com/nibzard/clear-go/internal/logging"
	"github.com/nibzard/clear-go/internal/pipeline"
	"github.com/nibzard/clear-go/internal/providers"
)

type testApp struct {
	*app
	out  *bytes.Buffer
	errs *bytes.Buffer
	dir  string
}

// newTestApp isolates config lookup in a temporary project directory.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, name := range []string{"DATA_PATH", "PROVIDER", "RUN_NAME", "OUTPUT_DIR", "LOG_DIR", "LOG_LEVEL"} {
		t.Setenv("CLEAR_"+name, "")
	}

	out, errs := &bytes.Buffer{}, &bytes.Buffer{}
	a := newApp(out, errs)
	a.projectDir = t.TempDir()
	a.skipUserConfig = true
	return &testApp{app: a, out: out, errs: errs, dir: a.projectDir}
}

func (ta *testApp) run(args ...string) error {
	return ta.execute(context.Background(), args)
}

func (ta *testApp) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(ta.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fakeJudge() providers.Provider {
	return providers.Func(func(_ context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Synthesized List of Shortcomings"):
			return `["Ignores units"]`, nil
		case strings.Contains(prompt, `{"matches"`):
			return `{"matches": [true]}`, nil
		case strings.Contains(prompt, "Response:\nwrong"):
			return `{"evaluation": "The answer is wrong.", "score": 0.1}`, nil
		default:
			return `{"evaluation": "Correct.", "score": 0.9}`, nil
		}
	})
}

const testCSV = "id,model_input,response\n" +
	"a,What is 2+2?,4\n" +
	"b,What is 3+3?,wrong\n"

func TestRun(t *testing.T) {
	t.Run("help", func(t *testing.T) {
		ta := newTestApp(t)
		if err := ta.run("--help"); err != nil {
			t.Fatalf("--help: %v", err)
		}
		for _, want := range []string{"run", "generate", "evaluate", "aggregate", "dashboard", "doctor", "--data-path"} {
			if !strings.Contains(ta.out.String(), want) {
				t.Errorf("help output missing %q", want)
			}
		}
	})

	t.Run("version flag and command", func(t *testing.T) {
		ta := newTestApp(t)
		if err := ta.run("--version"); err != nil {
			t.Fatal(err)
		}
		if err := ta.run("version"); err != nil {
			t.Fatal(err)
		}
		if got := strings.Count(ta.out.String(), "clear "+Version); got != 2 {
			t.Errorf("expected version twice, got %q", ta.out.String())
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		ta := newTestApp(t)
		err := ta.run("bogus")
		if err == nil || !strings.Contains(err.Error(), "unknown command") {
			t.Errorf("expected unknown command error, got %v", err)
		}
	})

	t.Run("invalid flag value", func(t *testing.T) {
		ta := newTestApp(t)
		err := ta.run("config", "validate", "--max-workers", "0")
		if err == nil || !strings.Contains(err.Error(), "parallel.max_workers") {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestRunCommand(t *testing.T) {
	ta := newTestApp(t)
	ta.writeFile(t, "data.csv", testCSV)
	ta.pipelineOpts = []pipeline.Option{pipeline.WithJudge(fakeJudge())}

	err := ta.run("run",
		"--data-path", "data.csv",
		"--run-name", "smoke",
		"--log-dir", filepath.Join(ta.dir, "logs"),
		"--provider", "cli",
	)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, ta.errs.String())
	}

	out := ta.out.String()
	for _, want := range []string{"Run smoke: 2 examples, 2 evaluated", "Mean score 0.500", "Ignores units", "analysis.json"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	analysisFile := filepath.Join(ta.dir, "results", "smoke", data.AnalysisFile)
	analysis, err := data.NewStore(nil).ReadAnalysis(analysisFile)
	if err != nil {
		t.Fatalf("read analysis: %v", err)
	}
	if analysis.Stats.Total != 2 || len(analysis.Shortcomings) != 1 {
		t.Errorf("unexpected analysis %+v", analysis.Stats)
	}

	logDir, err := logging.FindLogDir(filepath.Join(ta.dir, "logs"), ta.dir)
	if err != nil {
		t.Fatal(err)
	}
	runs, err := logging.FindLogRuns(logDir)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run log, got %v (%v)", runs, err)
	}
	if len(runs[0].SummaryFiles) == 0 {
		t.Error("expected stage summaries next to the run log")
	}
	content, err := os.ReadFile(runs[0].LogFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var first, last logging.Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatal(err)
	}
	if first.Type != logging.EventRunStart || last.Type != logging.EventRunEnd || last.Status != "ok" {
		t.Errorf("unexpected first/last events %+v / %+v", first, last)
	}

	t.Run("aggregate reuses evaluations", func(t *testing.T) {
		ta.out.Reset()
		err := ta.run("aggregate", "--run-name", "smoke", "--log-dir", filepath.Join(ta.dir, "logs"), "--provider", "cli")
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		if !strings.Contains(ta.out.String(), "2 evaluated") {
			t.Errorf("unexpected output %q", ta.out.String())
		}
	})

	t.Run("logs lists runs", func(t *testing.T) {
		ta.out.Reset()
		if err := ta.run("logs", "--list", "--log-dir", filepath.Join(ta.dir, "logs")); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(ta.out.String(), "RUN") || !strings.Contains(ta.out.String(), "evaluate") {
			t.Errorf("unexpected run list %q", ta.out.String())
		}
	})

	t.Run("logs shows latest", func(t *testing.T) {
		ta.out.Reset()
		if err := ta.run("logs", "-n", "1", "--log-dir", filepath.Join(ta.dir, "logs")); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(ta.out.String(), `"type":"run_end"`) {
			t.Errorf("expected last event, got %q", ta.out.String())
		}
	})
}

func TestLogsWithoutRuns(t *testing.T) {
	ta := newTestApp(t)
	logs := filepath.Join(ta.dir, "never-created")

	if err := ta.run("logs", "--log-dir", logs); err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(ta.out.String(), "No log files found.") {
		t.Errorf("unexpected output %q", ta.out.String())
	}

	ta.out.Reset()
	if err := ta.run("logs", "--list", "--log-dir", logs); err != nil {
		t.Fatalf("logs --list: %v", err)
	}
	if !strings.Contains(ta.out.String(), "No runs found.") {
		t.Errorf("unexpected output %q", ta.out.String())
	}

	t.Run("unreadable log dir", func(t *testing.T) {
		blocker := ta.writeFile(t, "blocker", "not a directory")
		if err := ta.run("logs", "--list", "--log-dir", blocker); err == nil {
			t.Error("expected error when the log dir cannot be read")
		}
	})
}

func TestStageCommands(t *testing.T) {
	ta := newTestApp(t)
	ta.writeFile(t, "data.csv", testCSV)
	ta.pipelineOpts = []pipeline.Option{pipeline.WithJudge(fakeJudge())}
	logs := filepath.Join(ta.dir, "logs")

	if err := ta.run("evaluate", "--data-path", "data.csv", "--log-dir", logs, "--provider", "cli"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(ta.out.String(), "Evaluated 2 examples (0 failed)") {
		t.Errorf("unexpected output %q", ta.out.String())
	}
	if _, err := os.Stat(filepath.Join(ta.dir, "results", "default", data.EvaluationsFile)); err != nil {
		t.Errorf("evaluations not written: %v", err)
	}

	t.Run("generate needs a dataset", func(t *testing.T) {
		err := ta.run("generate", "--run-name", "other", "--log-dir", logs, "--provider", "cli")
		if !errors.Is(err, pipeline.ErrNoDataPath) {
			t.Errorf("expected ErrNoDataPath, got %v", err)
		}
	})

	t.Run("aggregate without evaluations", func(t *testing.T) {
		err := ta.run("aggregate", "--run-name", "empty", "--log-dir", logs, "--provider", "cli")
		if err == nil || !strings.Contains(err.Error(), "run evaluate first") {
			t.Errorf("expected missing evaluations error, got %v", err)
		}
	})
}

func TestConfigCommands(t *testing.T) {
	ta := newTestApp(t)
	ta.writeFile(t, "clear.toml", "run_name = \"from-file\"\n[parallel]\nmax_workers = 3\n")

	if err := ta.run("config", "show", "--provider", "ollama"); err != nil {
		t.Fatalf("config show: %v", err)
	}
	out := ta.out.String()
	for _, want := range []string{"clear.toml", "from-file", "project file", "parallel.max_workers", "ollama", "flag"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}

	ta.out.Reset()
	if err := ta.run("config", "show", "--format", "yaml"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ta.out.String(), "run_name: from-file") {
		t.Errorf("unexpected yaml %q", ta.out.String())
	}

	if err := ta.run("config", "show", "--format", "xml"); err == nil {
		t.Error("expected unknown format error")
	}

	ta.out.Reset()
	if err := ta.run("config", "example"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ta.out.String(), "data_path") {
		t.Error("expected example config")
	}

	ta.out.Reset()
	if err := ta.run("config", "validate"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ta.out.String(), "valid") {
		t.Errorf("unexpected output %q", ta.out.String())
	}
}

func TestDoctor(t *testing.T) {
	t.Run("passes with cli provider and dataset", func(t *testing.T) {
		ta := newTestApp(t)
		ta.writeFile(t, "data.csv", testCSV)
		err := ta.run("doctor", "-v",
			"--provider", "cli",
			"--data-path", "data.csv",
			"--log-dir", filepath.Join(ta.dir, "logs"),
			"--config", ta.writeFile(t, "cfg.yaml", "providers:\n  cli:\n    binary: sh\n"),
		)
		if err != nil {
			t.Fatalf("doctor: %v\n%s", err, ta.out.String())
		}
		out := ta.out.String()
		for _, want := range []string{"Provider: cli", "Binary:", "2 examples", "All templates parse", "All checks passed"} {
			if !strings.Contains(out, want) {
				t.Errorf("doctor output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("reports missing api key", func(t *testing.T) {
		ta := newTestApp(t)
		t.Setenv("OPENAI_API_KEY", "")
		err := ta.run("doctor", "--provider", "openai", "--log-dir", filepath.Join(ta.dir, "logs"))
		if !errors.Is(err, errDoctorFailed) {
			t.Fatalf("expected doctor failure, got %v", err)
		}
		if !strings.Contains(ta.out.String(), "OPENAI_API_KEY is not set") {
			t.Errorf("expected api key failure:\n%s", ta.out.String())
		}
	})

	t.Run("reports missing cli binary", func(t *testing.T) {
		ta := newTestApp(t)
		err := ta.run("doctor", "--provider", "cli", "--log-dir", filepath.Join(ta.dir, "logs"))
		if !errors.Is(err, errDoctorFailed) {
			t.Fatalf("expected doctor failure, got %v", err)
		}
		if !strings.Contains(ta.out.String(), "providers.cli.binary") {
			t.Errorf("expected binary failure:\n%s", ta.out.String())
		}
	})

	t.Run("reports bad dataset", func(t *testing.T) {
		ta := newTestApp(t)
		ta.writeFile(t, "bad.csv", "question\nhello\n")
		err := ta.run("doctor", "--provider", "ollama", "--data-path", "bad.csv", "--log-dir", filepath.Join(ta.dir, "logs"))
		if !errors.Is(err, errDoctorFailed) {
			t.Fatalf("expected doctor failure, got %v", err)
		}
		if !strings.Contains(ta.out.String(), "missing columns") {
			t.Errorf("expected dataset failure:\n%s", ta.out.String())
		}
	})
}

func TestAnalysisPath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		in, want string
	}{
		{dir, filepath.Join(dir, data.AnalysisFile)},
		{"results/run1", filepath.Join("results/run1", data.AnalysisFile)},
		{"custom.json", "custom.json"},
	}
	for _, tt := range tests {
		if got := analysisPath(tt.in); got != tt.want {
			t.Errorf("analysisPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindRunLog(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20250101-000000-aaaa1111.jsonl", "20250101-000000-aaaa2222.jsonl", "20250102-000000-bbbb1111.jsonl"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if got, err := findRunLog(dir, "20250102"); err != nil || filepath.Base(got) != "20250102-000000-bbbb1111.jsonl" {
		t.Errorf("findRunLog unique = %q, %v", got, err)
	}
	if _, err := findRunLog(dir, "20250101"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("expected ambiguous error, got %v", err)
	}
	if _, err := findRunLog(dir, "2024"); err == nil {
		t.Error("expected no match error")
	}
}

func TestSummaryStages(t *testing.T) {
	run := logging.LogRun{
		RunID:        "20250101-000000-aaaa1111",
		SummaryFiles: []string{"/x/20250101-000000-aaaa1111-aggregate.summary.json", "/x/20250101-000000-aaaa1111-evaluate.summary.json"},
	}
	if got := summaryStages(run); got != "aggregate,evaluate" {
		t.Errorf("summaryStages = %q", got)
	}
	if got := summaryStages(logging.LogRun{}); got != "-" {
		t.Errorf("summaryStages(empty) = %q", got)
	}
}
