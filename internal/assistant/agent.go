package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reinhart/taskAgent/internal/logger"
)

// DefaultMaxDepth is the number of tool rounds allowed per user turn.
const DefaultMaxDepth = 5

// StatusUpdate represents a real-time update from the agent
type StatusUpdate struct {
	Message string
}

// Options tune the conversation loop.
type Options struct {
	MaxDepth     int           // tool rounds per turn; <= 0 means DefaultMaxDepth
	Dedup        DedupPolicy   // repeated identical calls
	Streaming    bool          // use ChatStream when the provider supports it
	ModelTimeout time.Duration // per model call, 0 disables
	ToolTimeout  time.Duration // per tool call, 0 disables
}

// Agent manages the conversation flow between the user, the LLM, and the tools
type Agent struct {
	provider   LLMProvider
	registry   *ToolRegistry
	transcript *Transcript
	system     string
	opts       Options
	invoked    invokedCalls
	updates    chan StatusUpdate // Channel for sending updates to UI

	// OnFragment receives every streamed fragment, in arrival order, before
	// it is accumulated.
	OnFragment func(Fragment)

	// OnMessage is called after a message is appended to the transcript.
	OnMessage func(Message)
}

// NewAgent creates a new agent instance
func NewAgent(provider LLMProvider, registry *ToolRegistry, systemPrompt string, opts Options) *Agent {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Dedup == "" {
		opts.Dedup = DedupOff
	}
	return &Agent{
		provider:   provider,
		registry:   registry,
		transcript: NewTranscript(systemPrompt),
		system:     systemPrompt,
		opts:       opts,
		invoked:    make(invokedCalls),
		updates:    make(chan StatusUpdate, 10), // Buffered channel
	}
}

// Updates returns the channel for status updates
func (a *Agent) Updates() <-chan StatusUpdate {
	return a.updates
}

// Transcript returns the conversation driven by ProcessMessage.
func (a *Agent) Transcript() *Transcript {
	return a.transcript
}

// sendUpdate sends a status update non-blocking
func (a *Agent) sendUpdate(msg string) {
	select {
	case a.updates <- StatusUpdate{Message: msg}:
	default:
		// Drop if channel full or no listener
	}
}

// ProcessMessage appends a user message to the agent's transcript and runs
// the loop until the model answers.
func (a *Agent) ProcessMessage(ctx context.Context, input string) (string, error) {
	return a.RunTurn(ctx, a.transcript, input)
}

// RunTurn is ProcessMessage for a caller-owned transcript.
func (a *Agent) RunTurn(ctx context.Context, t *Transcript, input string) (string, error) {
	logger.Info("Processing user input: %s", input)
	a.sendUpdate("Analysing request...")

	if a.opts.Dedup == DedupTurn {
		a.invoked = make(invokedCalls)
	}
	if n := t.closeDangling("the previous request was aborted"); n > 0 {
		logger.Info("Closed %d unanswered tool call(s) from an aborted turn", n)
	}

	a.append(t, UserMessage(input))
	return a.Run(ctx, t)
}

// Run drives t until the model produces a message without tool calls, and
// returns that message's content. Every intermediate message is appended
// to t; nothing is removed on failure.
func (a *Agent) Run(ctx context.Context, t *Transcript) (string, error) {
	if t.Len() == 0 {
		return "", errors.New("cannot run an empty transcript")
	}

	var invoked invokedCalls
	if a.opts.Dedup != DedupOff {
		invoked = a.invoked
	}

	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			a.sendUpdate("Request cancelled")
			return "", fmt.Errorf("before model call: %w", err)
		}

		logger.Debug("Agent Loop Turn: %d", depth+1)
		a.sendUpdate(fmt.Sprintf("Thinking (Turn %d)...", depth+1))

		resp, err := a.complete(ctx, t)
		if err != nil {
			return "", a.providerFailure(ctx, err)
		}
		normalizeCalls(resp, depth)
		logger.Debug("Received response from LLM (Content len: %d, ToolCalls: %d)", len(resp.Content), len(resp.ToolCalls))

		a.append(t, *resp)

		if len(resp.ToolCalls) == 0 {
			logger.Info("Final response received")
			a.sendUpdate("Done")
			return resp.Content, nil
		}

		if depth >= a.opts.MaxDepth {
			logger.Info("Agent loop limit reached after %d tool rounds", depth)
			a.sendUpdate("Error: Loop limit reached")
			return "", &RunawayError{MaxDepth: a.opts.MaxDepth}
		}

		for _, tc := range resp.ToolCalls {
			if _, ok := a.registry.Get(tc.Function.Name); !ok {
				logger.Error("Tool not found: %s", tc.Function.Name)
				a.sendUpdate(fmt.Sprintf("Unknown tool %s", tc.Function.Name))
				return "", &ConfigurationError{Tool: tc.Function.Name}
			}
		}

		for _, tc := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				a.sendUpdate("Request cancelled")
				return "", fmt.Errorf("before tool %s: %w", tc.Function.Name, err)
			}
			a.append(t, a.invoke(ctx, tc, invoked))
		}
	}
}

// Reset clears the conversation history and remembered tool calls
func (a *Agent) Reset() {
	a.transcript = NewTranscript(a.system)
	a.invoked = make(invokedCalls)
}

func (a *Agent) append(t *Transcript, msg Message) {
	t.Append(msg)
	if a.OnMessage != nil {
		a.OnMessage(msg)
	}
}

func (a *Agent) complete(ctx context.Context, t *Transcript) (*Message, error) {
	if a.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.ModelTimeout)
		defer cancel()
	}

	messages := t.Messages()
	defs := a.registry.Definitions()

	if sp, ok := a.provider.(StreamingProvider); ok && a.opts.Streaming {
		logger.Debug("Opening stream to LLM Provider...")
		stream, err := sp.ChatStream(ctx, messages, defs)
		if err != nil {
			return nil, err
		}
		return drainStream(stream, a.OnFragment)
	}

	logger.Debug("Sending request to LLM Provider...")
	resp, err := a.provider.Chat(ctx, messages, defs)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrEmptyResponse
	}
	if a.opts.Streaming && a.OnFragment != nil {
		// Streaming callers still see the answer, as a single fragment.
		return drainStream(newMessageStream(resp), a.OnFragment)
	}
	return resp, nil
}

func (a *Agent) providerFailure(ctx context.Context, err error) error {
	logger.Info("LLM Error: %v", err)
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		a.sendUpdate("Request cancelled")
		return fmt.Errorf("request was cancelled: %w", ctx.Err())
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		a.sendUpdate("Request timed out")
		return fmt.Errorf("request timed out: %w", ctx.Err())
	}
	a.sendUpdate("Error communicating with LLM")
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Err: err}
}

// invoke runs one tool call and returns its result message. Tool failures
// are reported to the model, never to the caller.
func (a *Agent) invoke(ctx context.Context, tc ToolCall, invoked invokedCalls) Message {
	name := tc.Function.Name

	if invoked != nil {
		if previous, ok := invoked.lookup(tc); ok {
			logger.Info("Skipping repeated tool call %s", callSignature(tc))
			a.sendUpdate(fmt.Sprintf("Skipped repeated %s", name))
			return ToolResultMessage(tc, repeatedCallNotice(tc, previous))
		}
	}

	tool, _ := a.registry.Get(name)
	logger.Info("Tool Call Request: %s(%s)", name, tc.Function.Arguments)
	a.sendUpdate(fmt.Sprintf("Running %s...", name))

	if a.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.ToolTimeout)
		defer cancel()
	}

	output, err := tool.Execute(ctx, tc.Function.Arguments)
	if err != nil {
		terr := &ToolExecutionError{Tool: name, Err: err}
		logger.Info("Tool Execution Error (%s): %v", name, err)
		a.sendUpdate(fmt.Sprintf("Error in %s: %v", name, err))
		msg := ToolResultMessage(tc, terr.Error())
		msg.IsError = true
		return msg
	}

	logger.Debug("Tool Output (%s): %s", name, output)
	a.sendUpdate(fmt.Sprintf("Finished %s", name))
	if invoked != nil {
		invoked.record(tc, output)
	}
	return ToolResultMessage(tc, output)
}

// normalizeCalls gives every tool call an ID and type so results can be
// linked back to it.
func normalizeCalls(msg *Message, depth int) {
	msg.Role = RoleAssistant
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == "" {
			msg.ToolCalls[i].ID = fmt.Sprintf("call_%d_%d", depth, i)
		}
		if msg.ToolCalls[i].Type == "" {
			msg.ToolCalls[i].Type = "function"
		}
	}
}
