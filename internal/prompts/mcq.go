package prompts

import (
	"fmt"
	"sort"
	"strings"
)

// Multiple-choice task types recognised by DetectTaskType.
const (
	TaskPIQA                 = "piqa"
	TaskSIQA                 = "siqa"
	TaskCommonsenseQA        = "commonsenseqa"
	TaskReadingComprehension = "reading_comprehension"
	TaskBoolQ                = "boolq"
	TaskGeneralMCQ           = "general_mcq"
)

// TaskContext describes what a multiple-choice task type tests.
type TaskContext struct {
	Name         string
	Description  string
	KeyAspects   []string
	CommonErrors []string
}

var taskContexts = map[string]TaskContext{
	TaskPIQA: {
		Name:         "Physical Interaction QA (PIQA)",
		Description:  "physical reasoning and practical problem-solving",
		KeyAspects:   []string{"physical principles", "safety awareness", "practical feasibility"},
		CommonErrors: []string{"safety misjudgment", "physics misconception", "impractical solution"},
	},
	TaskSIQA: {
		Name:         "Social Interaction QA (SIQA)",
		Description:  "social reasoning and interpersonal understanding",
		KeyAspects:   []string{"social norms", "emotional intelligence", "interpersonal dynamics"},
		CommonErrors: []string{"social inappropriateness", "emotional insensitivity", "context misreading"},
	},
	TaskCommonsenseQA: {
		Name:         "CommonsenseQA",
		Description:  "general commonsense reasoning",
		KeyAspects:   []string{"logical reasoning", "world knowledge", "common sense"},
		CommonErrors: []string{"logical fallacy", "knowledge gap", "overthinking simple concepts"},
	},
	TaskBoolQ: {
		Name:         "Boolean Question Answering (BoolQ)",
		Description:  "reading comprehension and factual reasoning",
		KeyAspects:   []string{"reading comprehension", "factual accuracy", "logical inference"},
		CommonErrors: []string{"misreading passage", "factual misinterpretation", "logical inference error"},
	},
	TaskGeneralMCQ: {
		Name:         "Multiple Choice Question",
		Description:  "general reasoning and comprehension",
		KeyAspects:   []string{"comprehension", "logical reasoning", "knowledge application"},
		CommonErrors: []string{"miscomprehension", "logical error", "knowledge misapplication"},
	},
}

// ContextFor returns the context of a task type, falling back to general MCQ.
func ContextFor(taskType string) TaskContext {
	if c, ok := taskContexts[taskType]; ok {
		return c
	}
	return taskContexts[TaskGeneralMCQ]
}

// IsOptionResponse reports whether a response is a bare option choice
// (A-D, 0/1) or a yes/no style answer.
func IsOptionResponse(response string) bool {
	r := strings.ToLower(strings.TrimSpace(response))
	switch r {
	case "a", "b", "c", "d", "0", "1", "yes", "no", "true", "false":
		return true
	}
	return false
}

// DetectTaskType guesses the multiple-choice benchmark a question comes from.
func DetectTaskType(question string) string {
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "goal:") && strings.Contains(q, "option a:"):
		return TaskPIQA
	case strings.Contains(q, "question:") && (strings.Contains(q, "option a:") || strings.Contains(q, "a)")):
		if containsAny(q, "feel", "emotion", "social", "person") {
			return TaskSIQA
		}
		return TaskCommonsenseQA
	case strings.Contains(q, "passage:") || strings.Contains(q, "context:"):
		return TaskReadingComprehension
	case containsAny(q, "question:", "answer:", "true", "false", "yes", "no"):
		if strings.Contains(q, "passage") || len(strings.Fields(question)) > 50 {
			return TaskBoolQ
		}
	}
	return TaskGeneralMCQ
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ExtractOptions extracts lettered options from "Option A: ..." lines, or
// from "A) ..." lines when the first form is absent.
func ExtractOptions(question string) map[string]string {
	options := map[string]string{}
	lines := strings.Split(question, "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		for _, letter := range []string{"A", "B", "C", "D"} {
			prefix := "Option " + letter + ":"
			if strings.HasPrefix(line, prefix) {
				options[letter] = strings.TrimSpace(strings.TrimPrefix(line, prefix))
				break
			}
		}
	}
	if len(options) > 0 {
		return options
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) < 2 || line[1] != ')' {
			continue
		}
		letter := strings.ToUpper(line[:1])
		switch letter {
		case "A", "B", "C", "D":
			options[letter] = strings.TrimSpace(line[2:])
		}
	}
	return options
}

// DefaultCriteria is used when no evaluation criteria are configured.
var DefaultCriteria = map[string]string{
	"overall_quality": "The response correctly and completely addresses the input.",
}

// FormatCriteria renders criteria as a sorted bullet list.
func FormatCriteria(criteria map[string]string) string {
	if len(criteria) == 0 {
		criteria = DefaultCriteria
	}
	names := make([]string, 0, len(criteria))
	for name := range criteria {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", name, criteria[name])
	}
	return b.String()
}
