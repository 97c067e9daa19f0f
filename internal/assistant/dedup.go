package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DedupPolicy controls whether identical tool calls are re-executed.
type DedupPolicy string

const (
	// DedupOff executes every call.
	DedupOff DedupPolicy = "off"
	// DedupTurn suppresses repeats within one user turn.
	DedupTurn DedupPolicy = "turn"
	// DedupConversation suppresses repeats for the life of the agent.
	DedupConversation DedupPolicy = "conversation"
)

// ParseDedupPolicy maps a config value to a policy. Empty means off.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch DedupPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DedupOff:
		return DedupOff, nil
	case DedupTurn:
		return DedupTurn, nil
	case DedupConversation:
		return DedupConversation, nil
	}
	return DedupOff, fmt.Errorf("unknown dedup policy %q (want off, turn or conversation)", s)
}

// callSignature identifies a call by name and canonical arguments, so key
// order and whitespace do not matter.
func callSignature(tc ToolCall) string {
	var v interface{}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &v); err != nil {
		return tc.Function.Name + "(" + strings.TrimSpace(tc.Function.Arguments) + ")"
	}
	canonical, _ := json.Marshal(v)
	return tc.Function.Name + "(" + string(canonical) + ")"
}

// invokedCalls remembers results of calls already executed.
type invokedCalls map[string]string

func (c invokedCalls) lookup(tc ToolCall) (string, bool) {
	out, ok := c[callSignature(tc)]
	return out, ok
}

func (c invokedCalls) record(tc ToolCall, output string) {
	c[callSignature(tc)] = output
}

func repeatedCallNotice(tc ToolCall, previous string) string {
	return fmt.Sprintf("You already called %s with these exact arguments in this conversation and got back: %s\nDo not repeat this call; use the result you already have.",
		tc.Function.Name, previous)
}
