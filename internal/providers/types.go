package providers

import (
	"context"
	"errors"
	"time"

	"github.com/nibzard/clear-go/internal/config"
)

// Provider produces a completion for a single prompt.
type Provider interface {
	// Generate returns the model's text answer to prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the backend and model, e.g. "openai/gpt-4o".
	Name() string
}

// Func adapts a plain function to the Provider interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Name returns "func".
func (Func) Name() string {
	return "func"
}

// Settings holds everything a factory needs to build a provider.
type Settings struct {
	// Backend is the provider name, e.g. "openai" or "cli".
	Backend string

	// Model is the model to request.
	Model string

	// Provider holds the per-backend configuration block.
	Provider config.Provider

	// APIKey is resolved from Provider.APIKeyEnv.
	APIKey string

	// Timeout bounds a cli invocation. Zero means DefaultTimeout, negative disables it.
	Timeout time.Duration

	// WorkDir is the working directory for cli invocations.
	WorkDir string
}

// Factory builds a Provider from settings.
type Factory func(ctx context.Context, s Settings) (Provider, error)

// DefaultTimeout bounds a single cli call when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

var (
	// ErrEmptyResponse is returned when a backend answers with no text.
	ErrEmptyResponse = errors.New("provider returned an empty response")

	// ErrMissingAPIKey is returned when an API backend has no key configured.
	ErrMissingAPIKey = errors.New("api key is not set")
)
