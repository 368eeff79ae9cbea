package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nibzard/clear-go/internal/utils"
)

// mergeProviderTables merges provider configuration from decoded TOML or YAML
// tables. Only the keys present in a table overwrite the existing entry.
func mergeProviderTables(target ProvidersConfig, table map[string]interface{}) error {
	for key, value := range table {
		raw, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("provider %s must be a table", key)
		}
		name := utils.NormalizeName(key)
		provider := target[name]
		if err := applyProviderFields(&provider, raw); err != nil {
			return fmt.Errorf("provider %s: %w", key, err)
		}
		target[name] = provider
	}
	return nil
}

// applyProviderFields decodes the keys of a single provider table onto p.
func applyProviderFields(p *Provider, raw map[string]interface{}) error {
	if raw == nil {
		return nil
	}
	for _, field := range []struct {
		key    string
		target *string
	}{
		{"binary", &p.Binary},
		{"base_url", &p.BaseURL},
		{"api_key_env", &p.APIKeyEnv},
		{"api_version", &p.APIVersion},
	} {
		v, ok := raw[field.key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", field.key)
		}
		*field.target = s
	}
	if v, ok := raw["prompt_format"]; ok {
		format, ok := v.(string)
		if !ok {
			return fmt.Errorf("prompt_format must be a string")
		}
		p.PromptFormat = PromptFormat(format)
	}
	if v, ok := raw["args"]; ok {
		args, err := parseArgsValue(v)
		if err != nil {
			return err
		}
		p.Args = args
	}
	if v, ok := raw["temperature"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("temperature: %w", err)
		}
		p.Temperature = &f
	}
	if v, ok := raw["max_tokens"]; ok {
		n, err := toInt(v)
		if err != nil {
			return fmt.Errorf("max_tokens: %w", err)
		}
		p.MaxTokens = n
	}
	return nil
}

// parseArgsValue parses the args field which can be a string array or comma-separated string.
func parseArgsValue(v interface{}) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return filterEmptyArgs(val), nil
	case []interface{}:
		args := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("args must be a string array")
			}
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				args = append(args, trimmed)
			}
		}
		return args, nil
	case string:
		return utils.SplitAndTrim(val, ","), nil
	default:
		return nil, fmt.Errorf("args must be a string or string array")
	}
}

// filterEmptyArgs removes empty strings from args array.
func filterEmptyArgs(args []string) []string {
	filtered := make([]string, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}
	return filtered
}

// TOML decodes integers as int64, YAML as int.
func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected an integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// flattenKeys returns the dotted leaf keys of a decoded config table.
// Keys under evaluation_criteria are reported as the table itself.
func flattenKeys(prefix string, table map[string]interface{}) []string {
	var keys []string
	for k, v := range table {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		nested, ok := v.(map[string]interface{})
		if !ok || key == "evaluation_criteria" {
			keys = append(keys, key)
			continue
		}
		keys = append(keys, flattenKeys(key, nested)...)
	}
	sort.Strings(keys)
	return keys
}

// boolFromString parses a boolean from a string.
func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
