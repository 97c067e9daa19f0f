package assistant

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONModeParsesToolCalls(t *testing.T) {
	inner := &scriptedProvider{responses: []Message{final("```json\n" +
		`{"tool_calls":[{"name":"create_task","args":{"task_name":"Ship report"}},{"name":"get_projects","args":null},{"name":"NA","args":{}}],"content":""}` +
		"\n```")}}
	p := NewJSONToolProvider(inner)

	msg, err := p.Chat(context.Background(), []Message{UserMessage("create it")}, []ToolDefinition{(&CreateTaskTool{}).Definition()})
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 2)
	require.Equal(t, "create_task", msg.ToolCalls[0].Function.Name)
	require.JSONEq(t, `{"task_name":"Ship report"}`, msg.ToolCalls[0].Function.Arguments)
	require.Equal(t, "{}", msg.ToolCalls[1].Function.Arguments)
	require.True(t, strings.HasPrefix(msg.ToolCalls[0].ID, "call_"))
	require.NotEqual(t, msg.ToolCalls[0].ID, msg.ToolCalls[1].ID)

	// Native tool definitions are never sent to the inner model.
	require.Nil(t, inner.tools[0])
}

func TestJSONModeFallsBackToText(t *testing.T) {
	inner := &scriptedProvider{responses: []Message{final("  Sure, here you go.  ")}}
	msg, err := NewJSONToolProvider(inner).Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	require.NoError(t, err)
	require.Equal(t, "Sure, here you go.", msg.Content)
	require.Empty(t, msg.ToolCalls)
}

func TestRenderForJSONMode(t *testing.T) {
	tools := []ToolDefinition{(&GetTasksTool{}).Definition()}
	history := []Message{
		SystemMessage("You manage tasks."),
		UserMessage("what is in project 42?"),
		toolCalls(call("c1", "get_tasks", `{"project_gid":"42"}`)),
		{Role: RoleTool, ToolCallID: "c1", Name: "get_tasks", Content: "[]"},
	}

	out := renderForJSONMode(history, tools)
	require.Len(t, out, 3)
	require.Equal(t, RoleSystem, out[0].Role)
	require.True(t, strings.HasPrefix(out[0].Content, "You manage tasks."))
	require.Contains(t, out[0].Content, "tool_calls")
	require.Contains(t, out[0].Content, "get_tasks:")
	require.Equal(t, `Thought: - I called get_tasks with args {"project_gid":"42"} and got back: [].`, out[2].Content)
	require.Equal(t, RoleAssistant, out[2].Role)

	// The caller's history is untouched.
	require.Equal(t, "You manage tasks.", history[0].Content)
}

func TestRenderForJSONModeAddsSystemPrompt(t *testing.T) {
	out := renderForJSONMode([]Message{UserMessage("hi")}, []ToolDefinition{(&GetProjectsTool{}).Definition()})
	require.Len(t, out, 2)
	require.Equal(t, RoleSystem, out[0].Role)
}

func TestDescribeToolsIncludesSchema(t *testing.T) {
	desc := describeTools([]ToolDefinition{(&DeleteTaskTool{}).Definition()})
	idx := strings.Index(desc, "Arguments schema: ")
	require.GreaterOrEqual(t, idx, 0)

	line := strings.SplitN(desc[idx+len("Arguments schema: "):], "\n", 2)[0]
	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &schema))
	require.Equal(t, "object", schema["type"])
}
