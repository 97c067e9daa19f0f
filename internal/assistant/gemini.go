package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// GeminiProvider implements LLMProvider using Google's Gemini API
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider instance
func NewGeminiProvider(ctx context.Context, apiKey string, model string) (*GeminiProvider, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{
		client: client,
		model:  model,
	}, nil
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Message, error) {
	model := p.client.GenerativeModel(p.model)

	if len(tools) > 0 {
		var funcDecls []*genai.FunctionDeclaration
		for _, t := range tools {
			funcDecls = append(funcDecls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(schemaMap(t.Parameters)),
			})
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: funcDecls}}
	}

	history := p.history(model, messages)
	if len(history) == 0 {
		return nil, &ProviderError{Provider: "gemini", Err: fmt.Errorf("no user content to send")}
	}

	// The chat session owns everything but the last turn, which is sent.
	cs := model.StartChat()
	last := history[len(history)-1]
	cs.History = history[:len(history)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Err: err}
	}
	return p.parseResponse(resp)
}

func (p *GeminiProvider) history(model *genai.GenerativeModel, messages []Message) []*genai.Content {
	var history []*genai.Content
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(msg.Content)},
			}
			continue
		}

		if msg.Role == RoleTool {
			var response map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Content), &response); err != nil {
				response = map[string]interface{}{"result": msg.Content}
			}
			part := genai.FunctionResponse{Name: msg.Name, Response: response}
			// Consecutive results answer the same model turn.
			if n := len(history); n > 0 && isFunctionResponses(history[n-1]) {
				history[n-1].Parts = append(history[n-1].Parts, part)
				continue
			}
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{part}})
			continue
		}

		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}

		var parts []genai.Part
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			var args map[string]interface{}
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			parts = append(parts, genai.FunctionCall{
				Name: tc.Function.Name,
				Args: args,
			})
		}
		if len(parts) == 0 {
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: parts})
	}
	return history
}

func (p *GeminiProvider) parseResponse(resp *genai.GenerateContentResponse) (*Message, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &ProviderError{Provider: "gemini", Err: ErrEmptyResponse}
	}
	cand := resp.Candidates[0]

	result := &Message{Role: RoleAssistant}
	for _, part := range cand.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			result.Content += string(v)
		case genai.FunctionCall:
			argsBytes, _ := json.Marshal(v.Args)
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				// Gemini has no call IDs; results are matched by our own.
				ID:   "call_" + uuid.NewString(),
				Type: "function",
				Function: FunctionCall{
					Name:      v.Name,
					Arguments: string(argsBytes),
				},
			})
		}
	}
	return result, nil
}

func isFunctionResponses(c *genai.Content) bool {
	if len(c.Parts) == 0 {
		return false
	}
	for _, part := range c.Parts {
		if _, ok := part.(genai.FunctionResponse); !ok {
			return false
		}
	}
	return true
}

// toGenaiSchema converts the subset of JSON Schema used by our tools.
func toGenaiSchema(m map[string]interface{}) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	switch m["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]interface{}); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]interface{}); ok {
				s.Properties[name] = toGenaiSchema(pm)
			}
		}
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = append(s.Required, req...)
	case []interface{}:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if items, ok := m["items"].(map[string]interface{}); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := m["enum"].([]interface{}); ok {
		for _, e := range enum {
			if v, ok := e.(string); ok {
				s.Enum = append(s.Enum, v)
			}
		}
	}
	// Gemini rejects empty object schemas.
	if s.Type == genai.TypeObject && len(s.Properties) == 0 {
		return nil
	}
	return s
}
