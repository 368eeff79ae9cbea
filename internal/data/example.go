package data

import (
	"sort"
	"strconv"
)

// Output file names inside a run directory.
const (
	GenerationsFile = "generations.csv"
	EvaluationsFile = "evaluations.csv"
	AnalysisFile    = "analysis.json"
)

// Column names used in output CSVs.
const (
	colID        = "id"
	colInput     = "model_input"
	colResponse  = "response"
	colReference = "reference"
	colError     = "error"
	colScore     = "score"
	colText      = "evaluation_text"
	colGenError  = "generation_error"
)

// Example is one dataset row.
type Example struct {
	ID        string
	Input     string
	Response  string
	Reference string

	// Extra holds display-only columns selected by input_columns.
	Extra map[string]string

	// Error is the task error text of the stage that produced Response.
	Error string
}

// Failed reports whether the example's response could not be produced.
func (e Example) Failed() bool {
	return e.Error != ""
}

// Evaluation is the judge's verdict on one example.
type Evaluation struct {
	Example

	// Score is in [0,1]. It is meaningless when Error is set.
	Score float64

	// Text is the judge's evaluation text.
	Text string

	// Error is the task error text of the evaluation.
	Error string
}

// Failed reports whether the evaluation could not be produced.
func (e Evaluation) Failed() bool {
	return e.Error != ""
}

func extraKeys(examples []Example) []string {
	seen := map[string]bool{}
	var keys []string
	for _, ex := range examples {
		for k := range ex.Extra {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
