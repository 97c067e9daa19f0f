package assistant

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements LLMProvider using the OpenAI API
type OpenAIProvider struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
	name       string
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	if model == "" {
		model = openai.GPT4o
	}
	config := openai.DefaultConfig(apiKey)
	return newOpenAICompatible("openai", config, model)
}

func newOpenAICompatible(name string, config openai.ClientConfig, model string) *OpenAIProvider {
	// No overall timeout: it would also bound streamed bodies. Each call is
	// limited by its context instead.
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	config.HTTPClient = httpClient
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(config),
		httpClient: httpClient,
		model:      model,
		name:       name,
	}
}

// Chat sends messages to the LLM and returns the response
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Message, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(messages, tools))
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: p.name, Err: ErrEmptyResponse}
	}

	msg := resp.Choices[0].Message
	result := &Message{
		Role:    RoleAssistant, // OpenAI responses are always assistant
		Content: msg.Content,
	}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return result, nil
}

// ChatStream opens a streamed completion.
func (p *OpenAIProvider) ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition) (FragmentStream, error) {
	req := p.request(messages, tools)
	req.Stream = true
	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Err: err}
	}
	return &openAIStream{stream: stream, name: p.name}, nil
}

func (p *OpenAIProvider) request(messages []Message, tools []ToolDefinition) openai.ChatCompletionRequest {
	apiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case RoleTool:
			role = openai.ChatMessageRoleTool
		}

		var toolCalls []openai.ToolCall
		for _, tc := range msg.ToolCalls {
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		// Tool results must carry content.
		content := msg.Content
		if role == openai.ChatMessageRoleTool && content == "" {
			content = "{}"
		}

		apiMessages[i] = openai.ChatCompletionMessage{
			Role:       role,
			Content:    content,
			Name:       msg.Name,
			ToolCalls:  toolCalls,
			ToolCallID: msg.ToolCallID,
		}
	}

	var apiTools []openai.Tool
	for _, t := range tools {
		apiTools = append(apiTools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: apiMessages,
		Tools:    apiTools,
	}
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	name   string
}

func (s *openAIStream) Recv() (Fragment, error) {
	for {
		chunk, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return Fragment{}, io.EOF
		}
		if err != nil {
			return Fragment{}, &ProviderError{Provider: s.name, Err: err}
		}
		if len(chunk.Choices) == 0 {
			// usage-only chunks
			continue
		}
		delta := chunk.Choices[0].Delta
		f := Fragment{Content: delta.Content}
		for i, tc := range delta.ToolCalls {
			index := i
			if tc.Index != nil {
				index = *tc.Index
			}
			f.ToolCalls = append(f.ToolCalls, ToolCallFragment{
				Index:     index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		return f, nil
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
