package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const jsonToolContract = `You always respond with a JSON object that has two required keys.

tool_calls: list of tool calls, an empty array if you don't need to invoke a tool
content: your response to the user if a tool doesn't need to be invoked

Each tool call is an object with two keys:
    name: name of the function to run
    args: object with the arguments for the function call (empty if no arguments are needed)

Don't start your answers with "Here is the JSON response", just give the JSON.

The tools you have access to are:

%s
Any message that starts with "Thought:" is you thinking to yourself. This isn't told to the user so you still need to communicate what you did with them.
Don't repeat an action. If a thought tells you that you already took an action for a user, don't do it again.`

// JSONToolProvider gives tool calling to models that lack it. Tools are
// described in the system prompt and the model answers with a JSON object
// that is parsed back into tool calls.
type JSONToolProvider struct {
	inner LLMProvider
}

func NewJSONToolProvider(inner LLMProvider) *JSONToolProvider {
	return &JSONToolProvider{inner: inner}
}

type jsonToolReply struct {
	ToolCalls []struct {
		Name string          `json:"name"`
		Args json.RawMessage `json:"args"`
	} `json:"tool_calls"`
	Content string `json:"content"`
}

func (p *JSONToolProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Message, error) {
	resp, err := p.inner.Chat(ctx, renderForJSONMode(messages, tools), nil)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrEmptyResponse
	}
	return parseJSONToolReply(resp.Content), nil
}

// renderForJSONMode rewrites typed tool history into plain text the model
// can read. The caller's transcript is not modified.
func renderForJSONMode(messages []Message, tools []ToolDefinition) []Message {
	contract := ""
	if len(tools) > 0 {
		contract = fmt.Sprintf(jsonToolContract, describeTools(tools))
	}

	out := make([]Message, 0, len(messages)+1)
	if contract != "" && (len(messages) == 0 || messages[0].Role != RoleSystem) {
		out = append(out, SystemMessage(contract))
	}

	calls := make(map[string]ToolCall)
	for i, msg := range messages {
		switch {
		case msg.Role == RoleSystem:
			content := msg.Content
			if i == 0 && contract != "" {
				content = strings.TrimSpace(content + "\n\n" + contract)
			}
			out = append(out, SystemMessage(content))
		case msg.Role == RoleAssistant && len(msg.ToolCalls) > 0:
			for _, tc := range msg.ToolCalls {
				calls[tc.ID] = tc
			}
			if msg.Content != "" {
				out = append(out, Message{Role: RoleAssistant, Content: msg.Content})
			}
		case msg.Role == RoleTool:
			tc, ok := calls[msg.ToolCallID]
			if !ok {
				tc = ToolCall{Function: FunctionCall{Name: msg.Name, Arguments: "{}"}}
			}
			out = append(out, Message{
				Role: RoleAssistant,
				Content: fmt.Sprintf("Thought: - I called %s with args %s and got back: %s.",
					tc.Function.Name, tc.Function.Arguments, msg.Content),
			})
		default:
			out = append(out, Message{Role: msg.Role, Content: msg.Content})
		}
	}
	return out
}

func describeTools(tools []ToolDefinition) string {
	var b strings.Builder
	for _, t := range tools {
		schema, _ := json.Marshal(schemaMap(t.Parameters))
		fmt.Fprintf(&b, "%s:\n%s\nArguments schema: %s\n\n", t.Name, t.Description, schema)
	}
	return b.String()
}

// parseJSONToolReply turns the model's reply into a message. Replies that
// are not the expected JSON are returned as final text.
func parseJSONToolReply(raw string) *Message {
	text := stripCodeFence(raw)
	var reply jsonToolReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return &Message{Role: RoleAssistant, Content: strings.TrimSpace(raw)}
	}

	msg := &Message{Role: RoleAssistant, Content: reply.Content}
	for _, tc := range reply.ToolCalls {
		if tc.Name == "" || strings.EqualFold(tc.Name, "NA") {
			continue
		}
		args := strings.TrimSpace(string(tc.Args))
		if args == "" || args == "null" || args == "[]" {
			args = "{}"
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:   "call_" + uuid.NewString(),
			Type: "function",
			Function: FunctionCall{
				Name:      tc.Name,
				Arguments: args,
			},
		})
	}
	return msg
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
