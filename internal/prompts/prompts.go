package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

const (
	GenerationPrompt            = "generation.tmpl"
	EvaluationPrompt            = "evaluation.tmpl"
	ReferenceEvaluationPrompt   = "evaluation_reference.tmpl"
	MCQEvaluationPrompt         = "mcq_evaluation.tmpl"
	ShortcomingsSynthesisPrompt = "shortcomings_synthesis.tmpl"
	ShortcomingsMappingPrompt   = "shortcomings_mapping.tmpl"
)

//go:embed templates/*.tmpl
var bundled embed.FS

// Names lists every prompt the pipeline renders.
func Names() []string {
	return []string{
		GenerationPrompt,
		EvaluationPrompt,
		ReferenceEvaluationPrompt,
		MCQEvaluationPrompt,
		ShortcomingsSynthesisPrompt,
		ShortcomingsMappingPrompt,
	}
}

// Store loads prompt templates, preferring files in an override directory
// over the bundled defaults.
type Store struct {
	dir string
}

// NewStore creates a prompt store. An empty promptDir uses only bundled templates.
func NewStore(promptDir string) *Store {
	return &Store{dir: promptDir}
}

// Dir returns the override directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads a prompt template as a string.
func (s *Store) Load(name string) (string, error) {
	if name == "" {
		return "", errors.New("prompt name is empty")
	}
	if s != nil && s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read prompt %q: %w", name, err)
		}
	}
	data, err := bundled.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("read prompt %q: %w", name, err)
	}
	return string(data), nil
}

// Source reports whether a prompt comes from the override dir or the bundle.
func (s *Store) Source(name string) string {
	if s != nil && s.dir != "" {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			return filepath.Join(s.dir, name)
		}
	}
	return "bundled"
}

// Data holds prompt template variables.
type Data struct {
	ModelInput string
	Response   string
	Reference  string
	// Criteria is the rendered evaluation criteria block.
	Criteria string

	// MCQ evaluation
	Task      TaskContext
	IsCorrect bool
	MCQ       bool

	// Shortcomings
	EvaluationTexts string
	MaxShortcomings int
	EvaluationText  string
	Shortcomings    []string
}

// NewEvaluationData builds data for the evaluation prompts.
func NewEvaluationData(input, response, reference string, criteria map[string]string) Data {
	return Data{
		ModelInput: input,
		Response:   response,
		Reference:  reference,
		Criteria:   FormatCriteria(criteria),
	}
}

// NewMCQData builds data for the multiple-choice evaluation prompt.
// The correctness hint is a case-insensitive comparison of response and reference.
func NewMCQData(input, response, reference string, criteria map[string]string) Data {
	d := NewEvaluationData(input, response, reference, criteria)
	d.Task = ContextFor(DetectTaskType(input))
	d.IsCorrect = strings.EqualFold(strings.TrimSpace(response), strings.TrimSpace(reference))
	d.MCQ = true
	return d
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
}

// Renderer renders templates with strict missing-key behavior.
type Renderer struct {
	store *Store
}

// NewRenderer creates a prompt renderer.
func NewRenderer(store *Store) *Renderer {
	return &Renderer{store: store}
}

// Render loads and renders a prompt template with required variable checks.
func (r *Renderer) Render(name string, data Data) (string, error) {
	if r == nil || r.store == nil {
		return "", errors.New("prompt renderer is not initialized")
	}
	if err := validateRequired(name, data); err != nil {
		return "", err
	}
	raw, err := r.store.Load(name)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse prompt %q: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Check parses every prompt the store resolves, reporting the first broken one.
func (r *Renderer) Check() error {
	for _, name := range Names() {
		raw, err := r.store.Load(name)
		if err != nil {
			return err
		}
		if _, err := template.New(name).Funcs(funcs).Parse(raw); err != nil {
			return fmt.Errorf("parse prompt %q: %w", name, err)
		}
	}
	return nil
}

type requiredVar int

const (
	reqModelInput requiredVar = iota
	reqResponse
	reqReference
	reqEvaluationTexts
	reqMaxShortcomings
	reqEvaluationText
	reqShortcomings
)

var requiredByPrompt = map[string][]requiredVar{
	GenerationPrompt:            {reqModelInput},
	EvaluationPrompt:            {reqModelInput, reqResponse},
	ReferenceEvaluationPrompt:   {reqModelInput, reqResponse, reqReference},
	MCQEvaluationPrompt:         {reqModelInput, reqResponse, reqReference},
	ShortcomingsSynthesisPrompt: {reqEvaluationTexts, reqMaxShortcomings},
	ShortcomingsMappingPrompt:   {reqEvaluationText, reqShortcomings},
}

func validateRequired(name string, data Data) error {
	reqs, ok := requiredByPrompt[name]
	if !ok {
		return fmt.Errorf("unknown prompt %q", name)
	}
	for _, req := range reqs {
		switch req {
		case reqModelInput:
			if data.ModelInput == "" {
				return fmt.Errorf("prompt %q requires ModelInput", name)
			}
		case reqResponse:
			if data.Response == "" {
				return fmt.Errorf("prompt %q requires Response", name)
			}
		case reqReference:
			if data.Reference == "" {
				return fmt.Errorf("prompt %q requires Reference", name)
			}
		case reqEvaluationTexts:
			if data.EvaluationTexts == "" {
				return fmt.Errorf("prompt %q requires EvaluationTexts", name)
			}
		case reqMaxShortcomings:
			if data.MaxShortcomings <= 0 {
				return fmt.Errorf("prompt %q requires MaxShortcomings > 0", name)
			}
		case reqEvaluationText:
			if data.EvaluationText == "" {
				return fmt.Errorf("prompt %q requires EvaluationText", name)
			}
		case reqShortcomings:
			if len(data.Shortcomings) == 0 {
				return fmt.Errorf("prompt %q requires Shortcomings", name)
			}
		default:
			return fmt.Errorf("prompt %q has unsupported requirement", name)
		}
	}
	return nil
}
