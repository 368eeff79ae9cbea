package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// DefaultOllamaURL is used when the ollama provider has no base URL.
const DefaultOllamaURL = "http://localhost:11434"

// chatProvider sends each prompt as a single user message to an Eino chat model.
type chatProvider struct {
	name  string
	model model.BaseChatModel
}

func (p *chatProvider) Name() string {
	return p.name
}

func (p *chatProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%s: %w", p.name, ErrEmptyResponse)
	}
	return resp.Content, nil
}

func newChatProvider(s Settings, m model.BaseChatModel) *chatProvider {
	return &chatProvider{name: s.Backend + "/" + s.Model, model: m}
}

func requireModel(s Settings) error {
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}

func requireKey(s Settings) error {
	if s.APIKey == "" {
		if s.Provider.APIKeyEnv != "" {
			return fmt.Errorf("%w: export %s", ErrMissingAPIKey, s.Provider.APIKeyEnv)
		}
		return ErrMissingAPIKey
	}
	return nil
}

func temperature32(t *float64) *float32 {
	if t == nil {
		return nil
	}
	v := float32(*t)
	return &v
}

func openAIConfig(s Settings) *openai.ChatModelConfig {
	cfg := &openai.ChatModelConfig{
		Model:       s.Model,
		APIKey:      s.APIKey,
		BaseURL:     s.Provider.BaseURL,
		Temperature: temperature32(s.Provider.Temperature),
	}
	if s.Provider.MaxTokens > 0 {
		maxTokens := s.Provider.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	return cfg
}

func newOpenAI(ctx context.Context, s Settings) (Provider, error) {
	if err := requireModel(s); err != nil {
		return nil, err
	}
	if err := requireKey(s); err != nil {
		return nil, err
	}
	m, err := openai.NewChatModel(ctx, openAIConfig(s))
	if err != nil {
		return nil, err
	}
	return newChatProvider(s, m), nil
}

func newAzure(ctx context.Context, s Settings) (Provider, error) {
	if err := requireModel(s); err != nil {
		return nil, err
	}
	if err := requireKey(s); err != nil {
		return nil, err
	}
	if s.Provider.BaseURL == "" {
		return nil, fmt.Errorf("azure requires providers.azure.base_url (the resource endpoint)")
	}
	cfg := openAIConfig(s)
	cfg.ByAzure = true
	cfg.APIVersion = s.Provider.APIVersion
	m, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newChatProvider(s, m), nil
}

// newOpenAICompatible serves gateways that speak the OpenAI chat API at a
// custom base URL.
func newOpenAICompatible(ctx context.Context, s Settings) (Provider, error) {
	if s.Provider.BaseURL == "" {
		return nil, fmt.Errorf("%s requires providers.%s.base_url", s.Backend, s.Backend)
	}
	return newOpenAI(ctx, s)
}

func newClaude(ctx context.Context, s Settings) (Provider, error) {
	if err := requireModel(s); err != nil {
		return nil, err
	}
	if err := requireKey(s); err != nil {
		return nil, err
	}
	maxTokens := s.Provider.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	m, err := claude.NewChatModel(ctx, &claude.Config{
		APIKey:      s.APIKey,
		Model:       s.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature32(s.Provider.Temperature),
	})
	if err != nil {
		return nil, err
	}
	return newChatProvider(s, m), nil
}

func newOllama(ctx context.Context, s Settings) (Provider, error) {
	if err := requireModel(s); err != nil {
		return nil, err
	}
	baseURL := s.Provider.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	m, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   s.Model,
	})
	if err != nil {
		return nil, err
	}
	return newChatProvider(s, m), nil
}

func newGemini(ctx context.Context, s Settings) (Provider, error) {
	if err := requireModel(s); err != nil {
		return nil, err
	}
	if err := requireKey(s); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	m, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  s.Model,
	})
	if err != nil {
		return nil, err
	}
	return newChatProvider(s, m), nil
}
