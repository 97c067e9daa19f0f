package assistant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccumulatorMergesToolCallsByIndex(t *testing.T) {
	acc := newStreamAccumulator()
	for _, f := range []Fragment{
		{Content: "Creating "},
		{Content: "both."},
		{ToolCalls: []ToolCallFragment{{Index: 0, ID: "c1", Name: "create_task"}}},
		{ToolCalls: []ToolCallFragment{{Index: 1, ID: "c2", Name: "create_task"}}},
		{ToolCalls: []ToolCallFragment{{Index: 0, Arguments: `{"task_name":`}}},
		{ToolCalls: []ToolCallFragment{{Index: 1, Arguments: `{"task_name":"b"}`}}},
		{ToolCalls: []ToolCallFragment{{Index: 0, Arguments: `"a"}`}}},
	} {
		acc.Add(f)
	}

	msg := acc.Message()
	require.Equal(t, RoleAssistant, msg.Role)
	require.Equal(t, "Creating both.", msg.Content)
	require.Len(t, msg.ToolCalls, 2)
	require.Equal(t, "c1", msg.ToolCalls[0].ID)
	require.Equal(t, `{"task_name":"a"}`, msg.ToolCalls[0].Function.Arguments)
	require.Equal(t, "c2", msg.ToolCalls[1].ID)
	require.Equal(t, `{"task_name":"b"}`, msg.ToolCalls[1].Function.Arguments)
}

func TestAccumulatorSeparatesReusedIndexByID(t *testing.T) {
	acc := newStreamAccumulator()
	acc.Add(Fragment{ToolCalls: []ToolCallFragment{{Index: 0, ID: "c1", Name: "get_projects"}}})
	acc.Add(Fragment{ToolCalls: []ToolCallFragment{{Index: 0, ID: "c2", Name: "get_tasks", Arguments: `{"project_gid":"9"}`}}})

	msg := acc.Message()
	require.Len(t, msg.ToolCalls, 2)
	require.Equal(t, "get_projects", msg.ToolCalls[0].Function.Name)
	require.Equal(t, "{}", msg.ToolCalls[0].Function.Arguments)
	require.Equal(t, "get_tasks", msg.ToolCalls[1].Function.Name)
}

type failingStream struct{ sent bool }

func (s *failingStream) Recv() (Fragment, error) {
	if !s.sent {
		s.sent = true
		return Fragment{Content: "partial"}, nil
	}
	return Fragment{}, errors.New("connection reset")
}

func (s *failingStream) Close() error { return nil }

func TestDrainStreamForwardsInOrderAndCloses(t *testing.T) {
	stream := &sliceStream{fragments: []Fragment{{Content: "a"}, {Content: "b"}, {Content: "c"}}}
	var seen []string
	msg, err := drainStream(stream, func(f Fragment) { seen = append(seen, f.Content) })
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, seen)
	require.Equal(t, "abc", msg.Content)
	require.True(t, stream.closed)
}

func TestDrainStreamError(t *testing.T) {
	_, err := drainStream(&failingStream{}, nil)
	require.EqualError(t, err, "connection reset")
}

func TestMessageStreamReplaysOnce(t *testing.T) {
	msg := &Message{Content: "hi", ToolCalls: []ToolCall{call("c1", "get_projects", "{}")}}
	got, err := drainStream(newMessageStream(msg), nil)
	require.NoError(t, err)
	require.Equal(t, "hi", got.Content)
	require.Equal(t, msg.ToolCalls, got.ToolCalls)
}
