package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouterSendsSimpleTurnsToCheapModel(t *testing.T) {
	classifier := &scriptedProvider{responses: []Message{final("CHEAP")}}
	cheap := &scriptedProvider{responses: []Message{final("cheap answer")}}
	expensive := &scriptedProvider{}
	r := NewRoutingProvider(classifier, cheap, expensive)

	msg, err := r.Chat(context.Background(), []Message{SystemMessage("sys"), UserMessage("list my projects")}, nil)
	require.NoError(t, err)
	require.Equal(t, "cheap answer", msg.Content)
	require.Equal(t, 0, expensive.calls())

	// The classifier sees the user's request and nothing else is sent to it.
	require.Len(t, classifier.requests[0], 1)
	require.Contains(t, classifier.requests[0][0].Content, "list my projects")
	require.Nil(t, classifier.tools[0])
}

func TestRouterDecidesOncePerTurn(t *testing.T) {
	classifier := &scriptedProvider{responses: []Message{final("EXPENSIVE"), final("cheap")}}
	cheap := &scriptedProvider{}
	expensive := &scriptedProvider{}
	r := NewRoutingProvider(classifier, cheap, expensive)
	ctx := context.Background()

	turn := []Message{UserMessage("create two tasks and delete a third")}
	require.Equal(t, TierExpensive, r.Decide(ctx, turn))

	// Tool rounds of the same turn reuse the decision.
	turn = append(turn, toolCalls(call("c1", "create_task", "{}")), Message{Role: RoleTool, ToolCallID: "c1", Content: "created"})
	require.Equal(t, TierExpensive, r.Decide(ctx, turn))
	require.Equal(t, 1, classifier.calls())

	// A new user message is a new turn.
	turn = append(turn, final("done"), UserMessage("thanks, list them"))
	require.Equal(t, TierCheap, r.Decide(ctx, turn))
	require.Equal(t, 2, classifier.calls())
}

func TestRouterFallsBackToExpensive(t *testing.T) {
	classifier := &scriptedProvider{err: errors.New("classifier down")}
	expensive := &scriptedProvider{responses: []Message{final("expensive answer")}}
	r := NewRoutingProvider(classifier, &scriptedProvider{}, expensive)

	msg, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	require.NoError(t, err)
	require.Equal(t, "expensive answer", msg.Content)
}

func TestRouterStreamsFromNonStreamingModel(t *testing.T) {
	classifier := &scriptedProvider{responses: []Message{final("CHEAP")}}
	cheap := &scriptedProvider{responses: []Message{final("one piece")}}
	r := NewRoutingProvider(classifier, cheap, &scriptedProvider{})

	stream, err := r.ChatStream(context.Background(), []Message{UserMessage("hi")}, nil)
	require.NoError(t, err)
	msg, err := drainStream(stream, nil)
	require.NoError(t, err)
	require.Equal(t, "one piece", msg.Content)
}

func TestTurnKeyWindow(t *testing.T) {
	msgs := []Message{
		SystemMessage("sys"),
		UserMessage("one"),
		final("a"),
		UserMessage("two"),
		final("b"),
		UserMessage("three"),
		toolCalls(call("c1", "get_projects", "{}")),
	}
	key, window := turnKey(msgs)
	require.Equal(t, msgs[3:6], window)

	// Tool rounds after the user message keep the key.
	sameTurn, _ := turnKey(msgs[:6])
	require.Equal(t, key, sameTurn)
}

func TestRouterKeysDecisionsByWindow(t *testing.T) {
	classifier := &scriptedProvider{responses: []Message{final("EXPENSIVE"), final("CHEAP")}}
	r := NewRoutingProvider(classifier, &scriptedProvider{}, &scriptedProvider{})
	ctx := context.Background()

	busy := []Message{UserMessage("create a, b and c"), final("which project?"), UserMessage("ok")}
	idle := []Message{UserMessage("hello"), final("hi, how can I help?"), UserMessage("ok")}

	require.Equal(t, TierExpensive, r.Decide(ctx, busy))
	require.Equal(t, TierCheap, r.Decide(ctx, idle))
	require.Equal(t, 2, classifier.calls())
}
