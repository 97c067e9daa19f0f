package ui

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/reinhart/taskAgent/internal/assistant"
)

func TestPreviewCollapsesAndTruncates(t *testing.T) {
	require.Equal(t, "a b c", preview("a\n  b\tc"))

	long := strings.Repeat("x", maxToolPreview+10)
	got := preview(long)
	require.True(t, strings.HasSuffix(got, "…"))
	require.Len(t, strings.TrimSuffix(got, "…"), maxToolPreview)

	accented := "x" + strings.Repeat("é", maxToolPreview)
	got = preview(accented)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, maxToolPreview, utf8.RuneCountInString(strings.TrimSuffix(got, "…")))
}

func TestRenderToolEvent(t *testing.T) {
	calls := assistant.Message{
		Role: assistant.RoleAssistant,
		ToolCalls: []assistant.ToolCall{
			{ID: "c1", Function: assistant.FunctionCall{Name: "get_projects", Arguments: "{}"}},
			{ID: "c2", Function: assistant.FunctionCall{Name: "get_tasks", Arguments: `{"project_gid":"1"}`}},
		},
	}
	out := renderToolEvent(calls)
	require.Contains(t, out, "→ get_projects({})")
	require.Contains(t, out, `→ get_tasks({"project_gid":"1"})`)
	require.Equal(t, 2, strings.Count(out, "\n"))

	result := assistant.Message{Role: assistant.RoleTool, Name: "get_tasks", Content: "[]"}
	require.Contains(t, renderToolEvent(result), "← get_tasks: []")
}

func TestRenderToolEventShowsTextWithCalls(t *testing.T) {
	msg := assistant.Message{
		Role:      assistant.RoleAssistant,
		Content:   "Let me look up your projects.",
		ToolCalls: []assistant.ToolCall{{ID: "c1", Function: assistant.FunctionCall{Name: "get_projects", Arguments: "{}"}}},
	}
	out := renderToolEvent(msg)
	require.Contains(t, out, "Let me look up your projects.")
	require.Less(t, strings.Index(out, "Let me look"), strings.Index(out, "→ get_projects"))
}

func TestStreamedTextIsNotRenderedTwice(t *testing.T) {
	agent := assistant.NewAgent(nil, assistant.NewToolRegistry(), "", assistant.Options{})
	m := NewModel(agent)
	m.live.WriteString("Let me look up your projects.")

	msg := assistant.Message{
		Role:      assistant.RoleAssistant,
		Content:   "Let me look up your projects.",
		ToolCalls: []assistant.ToolCall{{ID: "c1", Function: assistant.FunctionCall{Name: "get_projects", Arguments: "{}"}}},
	}
	next, _ := m.Update(transcriptMsg(msg))
	content := next.(Model).content.String()
	require.Equal(t, 1, strings.Count(content, "Let me look up your projects."))
	require.Contains(t, content, "→ get_projects({})")
}
