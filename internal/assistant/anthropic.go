package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
)

// AnthropicProvider implements LLMProvider using the Anthropic API
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic provider instance
func NewAnthropicProvider(apiKey string, model string) *AnthropicProvider {
	if model == "" {
		model = string(anthropic.ModelClaude3Dot5Sonnet20240620)
	}

	httpClient := &http.Client{
		Timeout: 120 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(apiKey, anthropic.WithHTTPClient(httpClient)),
		model:  model,
	}
}

func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Message, error) {
	system, apiMessages := anthropicMessages(messages)

	var apiTools []anthropic.ToolDefinition
	for _, t := range tools {
		apiTools = append(apiTools, anthropic.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaMap(t.Parameters),
		})
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		Messages:  apiMessages,
		Tools:     apiTools,
		MaxTokens: 4096,
		System:    system,
	}

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, &ProviderError{Provider: "anthropic", Err: err}
	}

	result := &Message{Role: RoleAssistant}
	for _, content := range resp.Content {
		switch content.Type {
		case anthropic.MessagesContentTypeText:
			if content.Text != nil {
				result.Content += *content.Text
			}
		case anthropic.MessagesContentTypeToolUse:
			argsBytes, _ := json.Marshal(content.Input)
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:   content.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      content.Name,
					Arguments: string(argsBytes),
				},
			})
		}
	}
	return result, nil
}

// anthropicMessages splits out the system prompt and converts the rest of
// the transcript to Anthropic messages.
func anthropicMessages(messages []Message) (string, []anthropic.Message) {
	var system strings.Builder
	var apiMessages []anthropic.Message

	for _, msg := range messages {
		// Anthropic takes the system prompt separately
		if msg.Role == RoleSystem {
			system.WriteString(msg.Content)
			system.WriteString("\n")
			continue
		}

		if msg.Role == RoleTool {
			block := anthropic.NewToolResultMessageContent(msg.ToolCallID, msg.Content, msg.IsError)
			// Results for one assistant turn belong in a single user message.
			if n := len(apiMessages); n > 0 && apiMessages[n-1].Role == anthropic.RoleUser && isToolResultMessage(apiMessages[n-1]) {
				apiMessages[n-1].Content = append(apiMessages[n-1].Content, block)
				continue
			}
			apiMessages = append(apiMessages, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{block},
			})
			continue
		}

		role := anthropic.RoleUser
		if msg.Role == RoleAssistant {
			role = anthropic.RoleAssistant
		}

		var content []anthropic.MessageContent
		if msg.Content != "" {
			content = append(content, anthropic.NewTextMessageContent(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			input := json.RawMessage(tc.Function.Arguments)
			if !json.Valid(input) {
				input = json.RawMessage("{}")
			}
			content = append(content, anthropic.NewToolUseMessageContent(tc.ID, tc.Function.Name, input))
		}
		if len(content) == 0 {
			content = append(content, anthropic.NewTextMessageContent(" "))
		}

		apiMessages = append(apiMessages, anthropic.Message{
			Role:    role,
			Content: content,
		})
	}
	return strings.TrimSpace(system.String()), apiMessages
}

func isToolResultMessage(m anthropic.Message) bool {
	for _, c := range m.Content {
		if c.Type != anthropic.MessagesContentTypeToolResult {
			return false
		}
	}
	return len(m.Content) > 0
}
