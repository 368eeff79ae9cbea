package config

import (
	"os"
	"path/filepath"
	"time"
)

// TaskTimeout returns the per-task budget for the parallel runner.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Parallel.TaskTimeoutSeconds) * time.Second
}

// RunDir returns the directory holding this run's outputs.
func (c *Config) RunDir() string {
	return filepath.Join(c.OutputDir, c.RunName)
}

// ActiveProvider returns the settings of the configured provider.
func (c *Config) ActiveProvider() Provider {
	return c.Providers.Get(c.Provider)
}

// APIKey resolves the API key of the given provider from its configured
// environment variable.
func (c *Config) APIKey(provider string) string {
	p := c.Providers.Get(provider)
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}
