package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/reinhart/taskAgent/internal/logger"
)

// Tier is the router's verdict for one user turn.
type Tier string

const (
	TierCheap     Tier = "CHEAP"
	TierExpensive Tier = "EXPENSIVE"
)

const routerContextMessages = 3

const routerPrompt = `Your only job is to take requests from users (as the last message in chat history), and determine the complexity of the
request to route it to a more powerful and more expensive LLM if the request is complicated, and a less powerful
and cheaper LLM if the request is not complicated.

A request is complicated if it requires the LLM to take more than one action (create a task, search for tasks, etc.).
A request is not complicated if it will involve the LLM taking zero or one action.

The last messages in the conversation (ending with the user's message/request) are:

%s

Output CHEAP if the request is not complicated and can be routed to the cheaper LLM.
Output EXPENSIVE if the request is complicated (involves more than one action likely)
and needs to be routed to the more expensive LLM.

Your output needs to be CHEAP or EXPENSIVE, nothing else.`

// RoutingProvider sends each user turn to a cheap or an expensive model,
// as decided by a classifier model. The decision is made once per turn and
// reused for that turn's tool rounds.
type RoutingProvider struct {
	classifier LLMProvider
	cheap      LLMProvider
	expensive  LLMProvider

	mu        sync.Mutex
	decisions map[string]Tier
}

func NewRoutingProvider(classifier, cheap, expensive LLMProvider) *RoutingProvider {
	return &RoutingProvider{
		classifier: classifier,
		cheap:      cheap,
		expensive:  expensive,
		decisions:  make(map[string]Tier),
	}
}

func (r *RoutingProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Message, error) {
	return r.route(ctx, messages).Chat(ctx, messages, tools)
}

// ChatStream streams from the chosen model, or replays its full answer as a
// single fragment when that model cannot stream.
func (r *RoutingProvider) ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition) (FragmentStream, error) {
	p := r.route(ctx, messages)
	if sp, ok := p.(StreamingProvider); ok {
		return sp.ChatStream(ctx, messages, tools)
	}
	msg, err := p.Chat(ctx, messages, tools)
	if err != nil {
		return nil, err
	}
	return newMessageStream(msg), nil
}

func (r *RoutingProvider) route(ctx context.Context, messages []Message) LLMProvider {
	if r.Decide(ctx, messages) == TierCheap {
		return r.cheap
	}
	return r.expensive
}

// Decide returns the tier for the turn that ends with the latest user
// message, asking the classifier only the first time.
func (r *RoutingProvider) Decide(ctx context.Context, messages []Message) Tier {
	key, window := turnKey(messages)

	r.mu.Lock()
	tier, ok := r.decisions[key]
	r.mu.Unlock()
	if ok {
		return tier
	}

	tier = r.classify(ctx, window)

	r.mu.Lock()
	if len(r.decisions) > 256 {
		r.decisions = make(map[string]Tier)
	}
	r.decisions[key] = tier
	r.mu.Unlock()
	return tier
}

func (r *RoutingProvider) classify(ctx context.Context, window []Message) Tier {
	var latest []string
	for _, m := range window {
		if m.Content != "" {
			latest = append(latest, m.Content)
		}
	}
	prompt := fmt.Sprintf(routerPrompt, strings.Join(latest, "\n\n"))

	resp, err := r.classifier.Chat(ctx, []Message{UserMessage(prompt)}, nil)
	if err != nil {
		// A broken classifier should not block the turn.
		logger.Error("Router classifier failed, using expensive model: %v", err)
		return TierExpensive
	}
	tier := TierExpensive
	if strings.Contains(strings.ToUpper(resp.Content), string(TierCheap)) {
		tier = TierCheap
	}
	logger.Info("Going with %s LLM model...", tier)
	return tier
}

// turnKey returns the messages the classifier sees (up to
// routerContextMessages ending with the last user message) and a key built
// from their roles and contents. The tool rounds of a turn do not change
// the window, so they reuse its decision.
func turnKey(messages []Message) (string, []Message) {
	last := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			last = i
			break
		}
	}
	window := messages
	if last >= 0 {
		start := last + 1 - routerContextMessages
		if start < 0 {
			start = 0
		}
		window = messages[start : last+1]
	}

	var key strings.Builder
	for _, m := range window {
		fmt.Fprintf(&key, "%s:%d:%s\n", m.Role, len(m.Content), m.Content)
	}
	return key.String(), window
}
