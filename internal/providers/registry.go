package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nibzard/clear-go/internal/config"
	"github.com/nibzard/clear-go/internal/utils"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"openai":    newOpenAI,
		"azure":     newAzure,
		"rits":      newOpenAICompatible,
		"watsonx":   newOpenAICompatible,
		"anthropic": newClaude,
		"ollama":    newOllama,
		"gemini":    newGemini,
		"cli":       newCLI,
	}
)

// Register installs a factory under name, replacing any existing one.
func Register(name string, factory Factory) {
	key := utils.NormalizeName(name)
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[key] = factory
}

// Registered lists the registered backend names in sorted order.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates a provider for the given settings.
func Build(ctx context.Context, s Settings) (Provider, error) {
	s.Backend = utils.NormalizeName(s.Backend)
	registryMu.RLock()
	factory, ok := registry[s.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q (supported: %v)", s.Backend, Registered())
	}
	p, err := factory(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", s.Backend, err)
	}
	return p, nil
}

// New creates the configured provider for model.
func New(ctx context.Context, cfg *config.Config, model string) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	return Build(ctx, Settings{
		Backend:  cfg.Provider,
		Model:    model,
		Provider: cfg.ActiveProvider(),
		APIKey:   cfg.APIKey(cfg.Provider),
		Timeout:  cfg.TaskTimeout(),
		WorkDir:  cfg.ProjectRoot,
	})
}

// NewGenerator creates the provider that answers dataset inputs.
func NewGenerator(ctx context.Context, cfg *config.Config) (Provider, error) {
	return New(ctx, cfg, cfg.GenModelName)
}

// NewJudge creates the provider that evaluates responses.
func NewJudge(ctx context.Context, cfg *config.Config) (Provider, error) {
	return New(ctx, cfg, cfg.EvalModelName)
}
