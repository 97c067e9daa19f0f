package assistant

import "fmt"

// Transcript is the append-only message history of one conversation.
// It has a single writer and is not safe for concurrent use.
type Transcript struct {
	messages []Message
}

// NewTranscript creates a transcript, seeded with a system message when
// systemPrompt is not empty.
func NewTranscript(systemPrompt string) *Transcript {
	t := &Transcript{}
	if systemPrompt != "" {
		t.Append(SystemMessage(systemPrompt))
	}
	return t
}

// TranscriptFrom rebuilds a transcript from previously exchanged messages.
func TranscriptFrom(messages []Message) *Transcript {
	t := &Transcript{}
	for _, m := range messages {
		t.Append(m)
	}
	return t
}

// Append adds a copy of msg to the end of the transcript.
func (t *Transcript) Append(msg Message) {
	t.messages = append(t.messages, cloneMessage(msg))
}

// cloneMessage copies msg including its tool calls, so neither side can
// change the other's history.
func cloneMessage(msg Message) Message {
	if len(msg.ToolCalls) > 0 {
		msg.ToolCalls = append([]ToolCall(nil), msg.ToolCalls...)
	}
	return msg
}

func cloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = cloneMessage(m)
	}
	return out
}

// Messages returns a copy of the transcript contents.
func (t *Transcript) Messages() []Message {
	return cloneMessages(t.messages)
}

// Since returns a copy of the messages appended at or after index i.
func (t *Transcript) Since(i int) []Message {
	if i < 0 {
		i = 0
	}
	if i >= len(t.messages) {
		return nil
	}
	return cloneMessages(t.messages[i:])
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the most recent message.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return cloneMessage(t.messages[len(t.messages)-1]), true
}

// danglingCalls returns the tool calls of the trailing assistant message
// that never received a tool result, in request order.
func (t *Transcript) danglingCalls() []ToolCall {
	answered := make(map[string]bool)
	for i := len(t.messages) - 1; i >= 0; i-- {
		msg := t.messages[i]
		switch msg.Role {
		case RoleTool:
			answered[msg.ToolCallID] = true
		case RoleAssistant:
			var open []ToolCall
			for _, tc := range msg.ToolCalls {
				if !answered[tc.ID] {
					open = append(open, tc)
				}
			}
			return open
		default:
			return nil
		}
	}
	return nil
}

// closeDangling answers every unanswered trailing tool call so the next
// provider request is well formed.
func (t *Transcript) closeDangling(reason string) int {
	open := t.danglingCalls()
	for _, tc := range open {
		msg := ToolResultMessage(tc, fmt.Sprintf("Not executed: %s", reason))
		msg.IsError = true
		t.Append(msg)
	}
	return len(open)
}
