package pipeline

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnparsableJudgement is returned when a judge reply holds no score.
var ErrUnparsableJudgement = errors.New("judge reply has no evaluation score")

// Judgement is a parsed judge reply.
type Judgement struct {
	Score float64
	Text  string
}

var (
	textualEvaluation = regexp.MustCompile(`(?is)textual evaluation:\s*(.*?)\s*evaluation score:`)
	evaluationScore   = regexp.MustCompile(`(?i)evaluation score:\s*\[?\s*([-+]?(?:\d+(?:\.\d*)?|\.\d+))`)
)

// ParseJudgement reads a judge reply. The JSON form
// {"evaluation": "...", "score": n} is tried first, then the text form
// "Textual Evaluation: ... Evaluation score: n". Scores are clamped to [0,1].
func ParseJudgement(raw string) (Judgement, error) {
	if err := loadSchemas(); err != nil {
		return Judgement{}, err
	}

	var jsonErr error
	if block := extractBlock(raw, '{', '}'); block != "" {
		doc, err := decodeValidated(block, judgementSchema)
		if err == nil {
			obj := doc.(map[string]any)
			return Judgement{
				Score: clampScore(obj["score"].(float64)),
				Text:  strings.TrimSpace(obj["evaluation"].(string)),
			}, nil
		}
		jsonErr = err
	}

	m := evaluationScore.FindStringSubmatchIndex(raw)
	if m == nil {
		if jsonErr != nil {
			return Judgement{}, fmt.Errorf("%w: %v", ErrUnparsableJudgement, jsonErr)
		}
		return Judgement{}, ErrUnparsableJudgement
	}
	score, err := strconv.ParseFloat(raw[m[2]:m[3]], 64)
	if err != nil {
		return Judgement{}, fmt.Errorf("%w: %v", ErrUnparsableJudgement, err)
	}

	text := ""
	if t := textualEvaluation.FindStringSubmatch(raw); t != nil {
		text = strings.TrimSpace(t[1])
	} else {
		text = strings.TrimSpace(raw[:m[0]])
	}
	return Judgement{Score: clampScore(score), Text: text}, nil
}

func clampScore(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(0, math.Min(1, s))
}
