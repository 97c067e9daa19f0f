package assistant

import (
	openai "github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// NewOllamaProvider creates a new OpenAI provider configured for local Ollama
func NewOllamaProvider(host string, model string) *OpenAIProvider {
	if host == "" {
		host = "http://localhost:11434/v1"
	}
	if model == "" {
		model = "llama3.1"
	}

	config := openai.DefaultConfig("ollama") // API Key is ignored by Ollama usually
	config.BaseURL = host
	return newOpenAICompatible("ollama", config, model)
}

// NewGroqProvider talks to Groq's OpenAI-compatible endpoint. It is the
// usual choice for the router's classifier and cheap tier.
func NewGroqProvider(apiKey string, model string) *OpenAIProvider {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = groqBaseURL
	return newOpenAICompatible("groq", config, model)
}

// NewOpenAICompatibleProvider points the OpenAI client at any base URL.
func NewOpenAICompatibleProvider(name, baseURL, apiKey, model string) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return newOpenAICompatible(name, config, model)
}
