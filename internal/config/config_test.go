// Package config tests configuration loading.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// isolateHome points user-level config lookup at an empty temp dir.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if cfg.Provider != DefaultProvider {
		t.Errorf("Provider: got %q, want %q", cfg.Provider, DefaultProvider)
	}
	if cfg.Parallel.MaxWorkers != DefaultMaxWorkers {
		t.Errorf("MaxWorkers: got %d, want %d", cfg.Parallel.MaxWorkers, DefaultMaxWorkers)
	}
	if cfg.TaskTimeout() != 300*time.Second {
		t.Errorf("TaskTimeout: got %v, want 5m", cfg.TaskTimeout())
	}
	if cfg.Parallel.ErrorPrefix != "Error: " {
		t.Errorf("ErrorPrefix: got %q", cfg.Parallel.ErrorPrefix)
	}
	if cfg.Columns.Input != "model_input" {
		t.Errorf("Columns.Input: got %q", cfg.Columns.Input)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadWithSources_Layers(t *testing.T) {
	home := isolateHome(t)
	project := t.TempDir()

	writeFile(t, filepath.Join(home, ".clear", "clear.toml"), `
provider = "cli"
run_name = "from-user"

[parallel]
max_workers = 4

[providers.cli]
binary = "llm"
args = ["-m", "small"]
`)
	writeFile(t, filepath.Join(project, "clear.yaml"), `
data_path: data/input.csv
parallel:
  task_timeout_seconds: 60
providers:
  cli:
    prompt_format: arg
evaluation_criteria:
  correctness: Is the answer right?
`)
	t.Setenv("CLEAR_MAX_WORKERS", "6")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--run-name", "flagged", "--is-reference-based"}); err != nil {
		t.Fatal(err)
	}

	cws, err := LoadWithSources(LoadOptions{ProjectDir: project, Flags: fs, SkipDotEnv: true})
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}
	cfg := cws.Config

	if cfg.Provider != "cli" {
		t.Errorf("Provider: got %q, want cli", cfg.Provider)
	}
	if cfg.RunName != "flagged" {
		t.Errorf("RunName: got %q, want flagged", cfg.RunName)
	}
	if !cfg.ReferenceBased {
		t.Error("ReferenceBased: expected flag to enable it")
	}
	if cfg.Parallel.MaxWorkers != 6 {
		t.Errorf("MaxWorkers: got %d, want 6 (env)", cfg.Parallel.MaxWorkers)
	}
	if cfg.Parallel.TaskTimeoutSeconds != 60 {
		t.Errorf("TaskTimeoutSeconds: got %d, want 60", cfg.Parallel.TaskTimeoutSeconds)
	}
	if cfg.DataPath != filepath.Join(project, "data", "input.csv") {
		t.Errorf("DataPath: got %q", cfg.DataPath)
	}
	if cfg.EvaluationCriteria["correctness"] != "Is the answer right?" {
		t.Errorf("EvaluationCriteria: got %v", cfg.EvaluationCriteria)
	}

	cli := cfg.Providers.Get("cli")
	if cli.Binary != "llm" || len(cli.Args) != 2 || cli.PromptFormat != PromptFormatArg {
		t.Errorf("cli provider not merged per field: %+v", cli)
	}
	if cfg.Providers.Get("openai").APIKeyEnv != "OPENAI_API_KEY" {
		t.Error("default provider settings should survive file layers")
	}

	wantSources := map[string]ConfigSource{
		"provider":                      SourceUserFile,
		"run_name":                      SourceFlag,
		"data_path":                     SourceProjFile,
		"parallel.max_workers":          SourceEnv,
		"parallel.task_timeout_seconds": SourceProjFile,
		"providers.cli.binary":          SourceUserFile,
		"providers.cli.prompt_format":   SourceProjFile,
		"evaluation_criteria":           SourceProjFile,
		"is_reference_based":            SourceFlag,
		"log_level":                     SourceDefault,
	}
	for field, want := range wantSources {
		if got := cws.Sources[field]; got != want {
			t.Errorf("Sources[%s]: got %q, want %q", field, got, want)
		}
	}
	if len(cws.Files) != 2 {
		t.Errorf("Files: got %v, want user and project files", cws.Files)
	}
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	isolateHome(t)
	project := t.TempDir()
	explicit := filepath.Join(t.TempDir(), "experiment.toml")
	writeFile(t, explicit, `max_shortcomings = 5`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--config", explicit}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoadOptions{ProjectDir: project, Flags: fs, SkipDotEnv: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxShortcomings != 5 {
		t.Errorf("MaxShortcomings: got %d, want 5", cfg.MaxShortcomings)
	}

	_, err = Load(LoadOptions{ProjectDir: project, ConfigFile: filepath.Join(project, "missing.toml"), SkipDotEnv: true})
	if err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	isolateHome(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".env"), "CLEAR_GEN_MODEL=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("CLEAR_GEN_MODEL") })

	cfg, err := Load(LoadOptions{ProjectDir: project})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GenModelName != "from-dotenv" {
		t.Errorf("GenModelName: got %q, want from-dotenv", cfg.GenModelName)
	}
	if cfg.EvalModelName != DefaultEvalModel {
		t.Errorf("EvalModelName: got %q", cfg.EvalModelName)
	}
}

func TestLoad_GenModelDefaultsToEvalModel(t *testing.T) {
	isolateHome(t)
	t.Setenv("CLEAR_EVAL_MODEL", "judge-large")

	cfg, err := Load(LoadOptions{ProjectDir: t.TempDir(), SkipDotEnv: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GenModelName != "judge-large" {
		t.Errorf("GenModelName: got %q, want judge-large", cfg.GenModelName)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	isolateHome(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, "clear.toml"), `
provider = "bogus"

[parallel]
max_workers = 0
`)

	_, err := Load(LoadOptions{ProjectDir: project, SkipDotEnv: true})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Rule
	}
	if fields["provider"] != "oneof" {
		t.Errorf("expected provider oneof failure, got %v", fields)
	}
	if fields["parallel.max_workers"] != "gte" {
		t.Errorf("expected parallel.max_workers gte failure, got %v", fields)
	}
}

func TestApplyFlags_EvaluationCriteria(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--evaluation-criteria", `{"clarity":"Is it clear?"}`, "--input-columns", "question, context"}); err != nil {
		t.Fatal(err)
	}
	if err := applyFlags(cfg, fs, nil); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.EvaluationCriteria["clarity"] != "Is it clear?" {
		t.Errorf("EvaluationCriteria: got %v", cfg.EvaluationCriteria)
	}
	if len(cfg.InputColumns) != 2 || cfg.InputColumns[1] != "context" {
		t.Errorf("InputColumns: got %v", cfg.InputColumns)
	}

	bad := pflag.NewFlagSet("bad", pflag.ContinueOnError)
	RegisterFlags(bad)
	if err := bad.Parse([]string{"--evaluation-criteria", "not json"}); err != nil {
		t.Fatal(err)
	}
	if err := applyFlags(cfg, bad, nil); err == nil {
		t.Error("expected error for malformed criteria")
	}
}

func TestProvidersConfig_MergePerField(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if _, err := toml.Decode(`
[providers.openai]
base_url = "http://proxy.local/v1"
temperature = 0
max_tokens = 512
`, cfg); err != nil {
		t.Fatalf("toml decode: %v", err)
	}
	if err := yaml.Unmarshal([]byte(`
providers:
  openai:
    temperature: 1
`), cfg); err != nil {
		t.Fatalf("yaml decode: %v", err)
	}

	openai := cfg.Providers.Get("OpenAI")
	if openai.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("APIKeyEnv lost: %+v", openai)
	}
	if openai.BaseURL != "http://proxy.local/v1" || openai.MaxTokens != 512 {
		t.Errorf("TOML fields lost: %+v", openai)
	}
	if openai.Temperature == nil || *openai.Temperature != 1 {
		t.Errorf("Temperature: got %v, want 1", openai.Temperature)
	}

	err := cfg.Providers.UnmarshalTOML(map[string]interface{}{"openai": "not a table"})
	if err == nil {
		t.Error("expected error for non-table provider")
	}
	err = cfg.Providers.UnmarshalTOML(map[string]interface{}{
		"openai": map[string]interface{}{"max_tokens": "many"},
	})
	if err == nil {
		t.Error("expected error for non-numeric max_tokens")
	}
}

func TestExampleConfigParses(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	if _, err := toml.Decode(ExampleConfig(), cfg); err != nil {
		t.Fatalf("example config: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("example config should validate: %v", err)
	}
	if cfg.Providers.Get("cli").Binary != "llm" {
		t.Errorf("expected cli binary from example, got %+v", cfg.Providers.Get("cli"))
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"~", home},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}
	if runtime.GOOS == "windows" {
		t.Setenv("CLEAR_TEST_HOME", home)
		tests = append(tests, struct {
			input string
			want  string
		}{
			input: `%CLEAR_TEST_HOME%\logs`,
			want:  filepath.Join(home, "logs"),
		})
	} else {
		tests = append(tests, struct {
			input string
			want  string
		}{
			input: `~\test`,
			want:  `~\test`,
		})
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := expandPath(tt.input)
			if got != tt.want {
				t.Errorf("expandPath(%q): got %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBoolFromString(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := boolFromString(tt.input)
			if got != tt.want {
				t.Errorf("boolFromString(%q): got %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
