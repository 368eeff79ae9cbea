// Package utils holds small helpers shared by config, data and providers.
package utils

import (
	"strconv"
	"strings"
)

// SplitAndTrim splits s on sep and drops blank parts.
func SplitAndTrim(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// JSONPointerToPath renders a JSON Schema instance location such as
// "#/shortcomings/2" as "shortcomings[2]".
func JSONPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, token := range strings.Split(ptr, "/") {
		token = pointerUnescaper.Replace(token)
		switch {
		case token == "":
		case isIndex(token):
			b.WriteString("[" + token + "]")
		case b.Len() == 0:
			b.WriteString(token)
		default:
			b.WriteString("." + token)
		}
	}
	return b.String()
}

func isIndex(token string) bool {
	n, err := strconv.Atoi(token)
	return err == nil && n >= 0 && strconv.Itoa(n) == token
}
