package pipeline

import (
	"errors"
	"strings"
	"testing"
)

func TestParseJudgement(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantScore float64
		wantText  string
	}{
		{
			name:      "json",
			raw:       `{"evaluation": "Correct and concise.", "score": 0.9}`,
			wantScore: 0.9,
			wantText:  "Correct and concise.",
		},
		{
			name:      "json in code fence with chatter",
			raw:       "Here is my verdict:\n```json\n{\"evaluation\": \"Misses units.\", \"score\": 0.4}\n```",
			wantScore: 0.4,
			wantText:  "Misses units.",
		},
		{
			name:      "score above range is clamped",
			raw:       `{"evaluation": "Great", "score": 7}`,
			wantScore: 1,
			wantText:  "Great",
		},
		{
			name:      "negative score is clamped",
			raw:       `{"evaluation": "Nonsense", "score": -0.5}`,
			wantScore: 0,
			wantText:  "Nonsense",
		},
		{
			name:      "text form",
			raw:       "--- Begin Evaluation ---\nTextual Evaluation: The choice shows a safety misjudgment.\nEvaluation score: 0.2",
			wantScore: 0.2,
			wantText:  "The choice shows a safety misjudgment.",
		},
		{
			name:      "text form with brackets",
			raw:       "Textual Evaluation: Fine.\nEvaluation score: [0.8]",
			wantScore: 0.8,
			wantText:  "Fine.",
		},
		{
			name:      "score only",
			raw:       "Mostly right.\nEvaluation Score: .75",
			wantScore: 0.75,
			wantText:  "Mostly right.",
		},
		{
			name:      "invalid json falls back to text",
			raw:       "Textual Evaluation: ok {not json}\nEvaluation score: 0.6",
			wantScore: 0.6,
			wantText:  "ok {not json}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJudgement(tt.raw)
			if err != nil {
				t.Fatalf("ParseJudgement: %v", err)
			}
			if got.Score != tt.wantScore {
				t.Errorf("score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Text != tt.wantText {
				t.Errorf("text = %q, want %q", got.Text, tt.wantText)
			}
		})
	}
}

func TestParseJudgement_Errors(t *testing.T) {
	t.Run("no score", func(t *testing.T) {
		_, err := ParseJudgement("I refuse to grade this.")
		if !errors.Is(err, ErrUnparsableJudgement) {
			t.Fatalf("expected ErrUnparsableJudgement, got %v", err)
		}
	})

	t.Run("schema violation is reported", func(t *testing.T) {
		_, err := ParseJudgement(`{"evaluation": "x", "score": "high"}`)
		if !errors.Is(err, ErrUnparsableJudgement) {
			t.Fatalf("expected ErrUnparsableJudgement, got %v", err)
		}
		if !strings.Contains(err.Error(), "score") {
			t.Errorf("expected failing field in error, got %v", err)
		}
	})
}

func TestSchemaError(t *testing.T) {
	err := &SchemaError{Path: "matches[1]", Message: "expected boolean"}
	if err.Error() != "reply validation failed at matches[1]: expected boolean" {
		t.Errorf("unexpected message %q", err.Error())
	}
	err = &SchemaError{Message: "bad"}
	if err.Error() != "reply validation failed: bad" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"plain":                   "plain",
		"```\n[\"a\"]\n```":       `["a"]`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}
