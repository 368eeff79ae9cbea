package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nibzard/clear-go/internal/utils"
)

const judgementSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["evaluation", "score"],
  "properties": {
    "evaluation": {"type": "string", "minLength": 1},
    "score": {"type": "number"}
  }
}`

const shortcomingsSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {"type": "string"}
}`

const matchesSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["matches"],
  "properties": {
    "matches": {"type": "array", "items": {"type": "boolean"}}
  }
}`

// SchemaError reports where a judge reply diverged from the expected shape.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("reply validation failed at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("reply validation failed: %s", e.Message)
}

var (
	schemasOnce sync.Once
	schemasErr  error

	judgementSchema    *jsonschema.Schema
	shortcomingsSchema *jsonschema.Schema
	matchesSchema      *jsonschema.Schema
)

func loadSchemas() error {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		sources := map[string]string{
			"judgement.json":    judgementSchemaJSON,
			"shortcomings.json": shortcomingsSchemaJSON,
			"matches.json":      matchesSchemaJSON,
		}
		for name, src := range sources {
			if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
				schemasErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}
		targets := map[string]**jsonschema.Schema{
			"judgement.json":    &judgementSchema,
			"shortcomings.json": &shortcomingsSchema,
			"matches.json":      &matchesSchema,
		}
		for name, target := range targets {
			s, err := compiler.Compile(name)
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			*target = s
		}
	})
	return schemasErr
}

// decodeValidated unmarshals raw JSON and validates it against schema.
func decodeValidated(raw string, schema *jsonschema.Schema) (any, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, schemaError(err)
	}
	return doc, nil
}

func schemaError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &SchemaError{Message: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return &SchemaError{
		Path:    utils.JSONPointerToPath(ve.InstanceLocation),
		Message: ve.Message,
	}
}

// extractBlock returns the outermost open...close span of s, after removing
// Markdown code fences. It returns "" when no such span exists.
func extractBlock(s string, open, close byte) string {
	s = stripFences(s)
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
