// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.clear/clear.toml or OS-specific config directory)
// 3. Project config file (clear.toml, .clear.toml or clear.yaml in the project root)
// 4. Explicit config file (--config)
// 5. Environment variables (CLEAR_*), with a project .env file filling unset ones
// 6. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
// Tables merge recursively: a layer that sets only providers.openai.base_url
// keeps every other provider setting from earlier layers.
//
// Both TOML and YAML files are accepted; the format follows the extension.
package config
