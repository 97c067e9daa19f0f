package assistant

import (
	"context"
)

// Role represents the role of a message sender
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a single message in the conversation
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"` // tool name on tool results
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set when Role is Tool
	IsError    bool       `json:"is_error,omitempty"`     // tool result reports a failure
}

// ToolCall represents a request from the LLM to execute a tool
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall represents the details of a function execution request
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object
}

// ToolDefinition defines a tool that can be used by the LLM
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"` // JSON Schema describing the parameters
}

// LLMProvider defines the interface for interacting with LLM backends
type LLMProvider interface {
	// Chat sends messages to the LLM and returns the response, potentially including tool calls
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Message, error)
}

// StreamingProvider is implemented by providers that can deliver a response
// incrementally.
type StreamingProvider interface {
	LLMProvider
	ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition) (FragmentStream, error)
}

// Fragment is one incremental piece of a streamed assistant message.
type Fragment struct {
	Content   string             `json:"content,omitempty"`
	ToolCalls []ToolCallFragment `json:"tool_calls,omitempty"`
}

// ToolCallFragment is a partial tool call. Index identifies the call within
// the response; ID and Name usually only arrive on the first fragment.
type ToolCallFragment struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// FragmentStream yields fragments until Recv returns io.EOF.
type FragmentStream interface {
	Recv() (Fragment, error)
	Close() error
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func ToolResultMessage(call ToolCall, content string) Message {
	return Message{
		Role:       RoleTool,
		ToolCallID: call.ID,
		Name:       call.Function.Name,
		Content:    content,
	}
}
