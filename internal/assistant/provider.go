package assistant

import (
	"context"
	"fmt"

	"github.com/reinhart/taskAgent/internal/configuration"
	"github.com/reinhart/taskAgent/internal/logger"
)

// MissingKeyError means the selected provider has no API key configured.
type MissingKeyError struct {
	Provider string
	EnvVar   string
	TOMLKey  string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s not set: export %s or add %s to the [llm] section of ~/.config/taskagent/config.toml",
		e.EnvVar, e.EnvVar, e.TOMLKey)
}

// NewProvider builds the provider named by name. An empty model selects
// the provider's default (or the model configured for it).
func NewProvider(ctx context.Context, cfg configuration.LLMConfig, name, model string) (LLMProvider, error) {
	switch name {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, &MissingKeyError{Provider: name, EnvVar: "ANTHROPIC_API_KEY", TOMLKey: "anthropic_api_key"}
		}
		return NewAnthropicProvider(cfg.AnthropicKey, firstNonEmpty(model, cfg.AnthropicModel)), nil

	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, &MissingKeyError{Provider: name, EnvVar: "GEMINI_API_KEY", TOMLKey: "gemini_api_key"}
		}
		p, err := NewGeminiProvider(ctx, cfg.GeminiKey, firstNonEmpty(model, cfg.GeminiModel))
		if err != nil {
			return nil, fmt.Errorf("initializing Gemini: %w", err)
		}
		return p, nil

	case "ollama":
		return NewOllamaProvider(cfg.OllamaHost, firstNonEmpty(model, cfg.OllamaModel)), nil

	case "groq":
		if cfg.GroqKey == "" {
			return nil, &MissingKeyError{Provider: name, EnvVar: "GROQ_API_KEY", TOMLKey: "groq_api_key"}
		}
		return NewGroqProvider(cfg.GroqKey, firstNonEmpty(model, cfg.GroqModel)), nil

	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, &MissingKeyError{Provider: name, EnvVar: "OPENAI_API_KEY", TOMLKey: "openai_api_key"}
		}
		return NewOpenAIProvider(cfg.OpenAIKey, firstNonEmpty(model, cfg.OpenAIModel)), nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q (supported: openai, anthropic, gemini, ollama, groq)", name)
}

// ProviderFromConfig builds the provider the agent talks to: the router
// when enabled, otherwise llm.provider, wrapped for JSON tool mode if asked.
func ProviderFromConfig(ctx context.Context, cfg *configuration.Config) (LLMProvider, error) {
	var (
		llm LLMProvider
		err error
	)
	if cfg.Router.Enabled {
		llm, err = routerFromConfig(ctx, cfg)
	} else {
		logger.Debug("Selected Provider: %s", cfg.LLM.Provider)
		llm, err = NewProvider(ctx, cfg.LLM, cfg.LLM.Provider, "")
	}
	if err != nil {
		return nil, err
	}

	if cfg.LLM.JSONToolMode {
		logger.Debug("Using JSON tool mode")
		llm = NewJSONToolProvider(llm)
	}
	return llm, nil
}

func routerFromConfig(ctx context.Context, cfg *configuration.Config) (LLMProvider, error) {
	r := cfg.Router
	logger.Debug("Router: classifier=%s cheap=%s expensive=%s", r.Classifier, r.Cheap, r.Expensive)

	classifier, err := NewProvider(ctx, cfg.LLM, r.Classifier, r.ClassifierModel)
	if err != nil {
		return nil, fmt.Errorf("router classifier: %w", err)
	}
	cheap, err := NewProvider(ctx, cfg.LLM, r.Cheap, r.CheapModel)
	if err != nil {
		return nil, fmt.Errorf("router cheap model: %w", err)
	}
	expensive, err := NewProvider(ctx, cfg.LLM, r.Expensive, r.ExpensiveModel)
	if err != nil {
		return nil, fmt.Errorf("router expensive model: %w", err)
	}
	return NewRoutingProvider(classifier, cheap, expensive), nil
}

// OptionsFromConfig maps the [agent] section onto loop options.
func OptionsFromConfig(cfg configuration.AgentConfig) (Options, error) {
	dedup, err := ParseDedupPolicy(cfg.Dedup)
	if err != nil {
		return Options{}, err
	}
	return Options{
		MaxDepth:     cfg.MaxDepth,
		Dedup:        dedup,
		Streaming:    cfg.Streaming,
		ModelTimeout: cfg.ModelTimeout(),
		ToolTimeout:  cfg.ToolTimeout(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
