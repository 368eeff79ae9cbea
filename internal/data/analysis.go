package data

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Analysis is the aggregated result of a run, stored as analysis.json.
type Analysis struct {
	RunName   string    `json:"run_name"`
	Provider  string    `json:"provider"`
	EvalModel string    `json:"eval_model"`
	GenModel  string    `json:"gen_model,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Stats        Stats             `json:"stats"`
	Histogram    []Bucket          `json:"histogram"`
	Shortcomings []ShortcomingStat `json:"shortcomings"`
	Examples     []ExampleResult   `json:"examples"`

	// Warnings lists non-fatal problems, such as a failed synthesis.
	Warnings []string `json:"warnings,omitempty"`
}

// Stats summarises the scores of a run. Failed evaluations are counted but
// excluded from score statistics.
type Stats struct {
	Total            int     `json:"total"`
	Evaluated        int     `json:"evaluated"`
	GenerationFailed int     `json:"generation_failed"`
	EvaluationFailed int     `json:"evaluation_failed"`
	MappingFailed    int     `json:"mapping_failed"`
	MeanScore        float64 `json:"mean_score"`
	MinScore         float64 `json:"min_score"`
	MaxScore         float64 `json:"max_score"`
	WithShortcomings int     `json:"with_shortcomings"`
	NoIssuesDetected int     `json:"no_issues_detected"`
}

// Bucket is one histogram bin covering [Low, High).
// The last bucket also includes its upper bound.
type Bucket struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// ShortcomingStat counts how many evaluations exhibit a shortcoming.
type ShortcomingStat struct {
	Text      string  `json:"text"`
	Count     int     `json:"count"`
	Frequency float64 `json:"frequency"`
}

// ExampleResult is the per-example view shown by the dashboard.
type ExampleResult struct {
	ID           string            `json:"id"`
	Input        string            `json:"model_input"`
	Response     string            `json:"response"`
	Reference    string            `json:"reference,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
	Score        *float64          `json:"score,omitempty"`
	Evaluation   string            `json:"evaluation_text,omitempty"`
	Shortcomings []string          `json:"shortcomings,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// WriteAnalysis writes a as indented JSON to path.
func (s *Store) WriteAnalysis(path string, a *Analysis) error {
	payload, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return afero.WriteFile(s.fs, path, append(payload, '\n'), 0644)
}

// ReadAnalysis reads an analysis.json file.
func (s *Store) ReadAnalysis(path string) (*Analysis, error) {
	payload, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read analysis: %w", err)
	}
	var a Analysis
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &a, nil
}
