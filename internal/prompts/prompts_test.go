package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestStoreLoad tests loading bundled and overridden prompts.
func TestStoreLoad(t *testing.T) {
	t.Run("bundled when no dir", func(t *testing.T) {
		store := NewStore("")
		for _, name := range Names() {
			content, err := store.Load(name)
			if err != nil {
				t.Fatalf("Load(%s) error = %v", name, err)
			}
			if strings.TrimSpace(content) == "" {
				t.Errorf("Load(%s) returned empty template", name)
			}
			if store.Source(name) != "bundled" {
				t.Errorf("Source(%s) = %q, want bundled", name, store.Source(name))
			}
		}
	})

	t.Run("override dir wins", func(t *testing.T) {
		dir := t.TempDir()
		custom := "Answer briefly: {{.ModelInput}}"
		if err := os.WriteFile(filepath.Join(dir, GenerationPrompt), []byte(custom), 0644); err != nil {
			t.Fatal(err)
		}
		store := NewStore(dir)
		content, err := store.Load(GenerationPrompt)
		if err != nil {
			t.Fatal(err)
		}
		if content != custom {
			t.Errorf("Load() content = %q, want %q", content, custom)
		}
		if store.Source(GenerationPrompt) != filepath.Join(dir, GenerationPrompt) {
			t.Errorf("unexpected source %q", store.Source(GenerationPrompt))
		}

		// Prompts missing from the dir fall back to the bundle.
		if _, err := store.Load(EvaluationPrompt); err != nil {
			t.Errorf("expected fallback to bundled prompt, got %v", err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		store := NewStore(t.TempDir())
		if _, err := store.Load(""); err == nil {
			t.Error("Load() with empty name expected error, got nil")
		}
		if _, err := store.Load("nonexistent.tmpl"); err == nil {
			t.Error("Load() of unknown prompt expected error, got nil")
		}
	})
}

func TestRenderEvaluationPrompts(t *testing.T) {
	renderer := NewRenderer(NewStore(""))
	criteria := map[string]string{
		"correctness":  "The answer is right.",
		"completeness": "Every part is addressed.",
	}

	t.Run("reference free", func(t *testing.T) {
		out, err := renderer.Render(EvaluationPrompt, NewEvaluationData("What is 2+2?", "4", "", criteria))
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		for _, want := range []string{"What is 2+2?", "Response:\n4", "- completeness: Every part", `"score"`} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		if strings.Contains(out, "Reference Answer") {
			t.Error("reference-free prompt should not mention the reference")
		}
	})

	t.Run("reference based", func(t *testing.T) {
		out, err := renderer.Render(ReferenceEvaluationPrompt, NewEvaluationData("What is 2+2?", "5", "4", criteria))
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !strings.Contains(out, "Reference Answer:\n4") {
			t.Errorf("expected reference in output:\n%s", out)
		}
	})

	t.Run("missing reference", func(t *testing.T) {
		_, err := renderer.Render(ReferenceEvaluationPrompt, NewEvaluationData("q", "a", "", nil))
		if err == nil || !strings.Contains(err.Error(), "Reference") {
			t.Errorf("expected missing Reference error, got %v", err)
		}
	})
}

func TestRenderMCQPrompt(t *testing.T) {
	renderer := NewRenderer(NewStore(""))
	question := "Goal: keep soup warm\nOption A: put it in the fridge\nOption B: cover the pot"

	out, err := renderer.Render(MCQEvaluationPrompt, NewMCQData(question, " b", "B", nil))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{
		"Physical Interaction QA (PIQA)",
		"✓ CORRECT",
		"physical principles, safety awareness, practical feasibility",
		"Textual Evaluation:",
		"Evaluation score:",
		"- overall_quality:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output", want)
		}
	}

	out, err = renderer.Render(MCQEvaluationPrompt, NewMCQData(question, "A", "B", nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "✗ INCORRECT") {
		t.Error("expected incorrect marker")
	}
}

func TestRenderShortcomingsPrompts(t *testing.T) {
	renderer := NewRenderer(NewStore(""))

	out, err := renderer.Render(ShortcomingsSynthesisPrompt, Data{
		EvaluationTexts: "Misses units.\nIgnores the second question.",
		MaxShortcomings: 7,
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "up to 7 concise phrases") || !strings.Contains(out, "Ignores the second question.") {
		t.Errorf("unexpected synthesis prompt:\n%s", out)
	}
	if strings.Contains(out, "Choice-Making Issues") {
		t.Error("MCQ categories should only appear for MCQ runs")
	}

	out, err = renderer.Render(ShortcomingsMappingPrompt, Data{
		EvaluationText: "The answer omits units.",
		Shortcomings:   []string{"Missing units", "Too verbose"},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "1. Missing units\n2. Too verbose") {
		t.Errorf("expected numbered shortcomings:\n%s", out)
	}

	if _, err := renderer.Render(ShortcomingsMappingPrompt, Data{EvaluationText: "x"}); err == nil {
		t.Error("expected error when shortcomings are missing")
	}
}

func TestRenderUnknownPrompt(t *testing.T) {
	renderer := NewRenderer(NewStore(""))
	if _, err := renderer.Render("nope.tmpl", Data{}); err == nil {
		t.Error("expected error for unknown prompt")
	}
	var nilRenderer *Renderer
	if _, err := nilRenderer.Render(GenerationPrompt, Data{ModelInput: "x"}); err == nil {
		t.Error("expected error for nil renderer")
	}
}

func TestRendererCheck(t *testing.T) {
	if err := NewRenderer(NewStore("")).Check(); err != nil {
		t.Errorf("bundled prompts should parse: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, EvaluationPrompt), []byte("{{.ModelInput"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewRenderer(NewStore(dir)).Check(); err == nil {
		t.Error("expected parse error for broken override")
	}
}
