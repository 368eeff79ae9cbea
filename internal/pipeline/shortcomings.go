package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoShortcomings is returned when a synthesis reply lists nothing usable.
var ErrNoShortcomings = errors.New("judge reply lists no shortcomings")

// ParseShortcomings reads a synthesis reply: a JSON array of strings, or
// failing that, a bulleted or numbered list. Entries are trimmed and
// de-duplicated case-insensitively, and at most max are kept.
func ParseShortcomings(raw string, max int) ([]string, error) {
	if err := loadSchemas(); err != nil {
		return nil, err
	}

	var items []string
	if block := extractBlock(raw, '[', ']'); block != "" {
		if doc, err := decodeValidated(block, shortcomingsSchema); err == nil {
			for _, v := range doc.([]any) {
				items = append(items, v.(string))
			}
		}
	}
	if items == nil {
		items = listItems(raw)
	}

	out := dedupe(items)
	if len(out) == 0 {
		return nil, ErrNoShortcomings
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// listItems extracts "- x", "* x", "1. x" and "1) x" lines.
func listItems(raw string) []string {
	var items []string
	for _, line := range strings.Split(stripFences(raw), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "), strings.HasPrefix(line, "• "):
			_, rest, _ := strings.Cut(line, " ")
			items = append(items, rest)
		default:
			if rest, ok := cutNumber(line); ok {
				items = append(items, rest)
			}
		}
	}
	return items
}

func cutNumber(line string) (string, bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) || (line[i] != '.' && line[i] != ')') {
		return "", false
	}
	return strings.TrimSpace(line[i+1:]), true
}

func dedupe(items []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, item := range items {
		item = strings.Trim(strings.TrimSpace(item), `"`)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// ParseMatches reads a mapping reply {"matches": [bool, ...]} holding one
// flag per shortcoming. A bare JSON array of booleans is also accepted.
func ParseMatches(raw string, n int) ([]bool, error) {
	if err := loadSchemas(); err != nil {
		return nil, err
	}

	var values []any
	if block := extractBlock(raw, '{', '}'); block != "" {
		doc, err := decodeValidated(block, matchesSchema)
		if err != nil {
			return nil, err
		}
		values = doc.(map[string]any)["matches"].([]any)
	} else if block := extractBlock(raw, '[', ']'); block != "" {
		var err error
		values, err = decodeBoolArray(block)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("reply holds no matches: %q", truncate(raw, 80))
	}

	if len(values) < n {
		return nil, fmt.Errorf("expected %d matches, got %d", n, len(values))
	}
	matches := make([]bool, n)
	for i := range matches {
		matches[i] = values[i].(bool)
	}
	return matches, nil
}

func decodeBoolArray(block string) ([]any, error) {
	doc, err := decodeValidated(`{"matches":`+block+`}`, matchesSchema)
	if err != nil {
		return nil, err
	}
	return doc.(map[string]any)["matches"].([]any), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
