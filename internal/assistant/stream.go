package assistant

import (
	"errors"
	"io"
	"strings"
)

// streamAccumulator rebuilds one assistant message from its fragments.
// Text is concatenated in arrival order; tool-call fragments are merged by
// index, or by ID when a provider reuses indexes.
type streamAccumulator struct {
	content strings.Builder
	calls   []*accumulatedCall
	byIndex map[int]*accumulatedCall
	byID    map[string]*accumulatedCall
}

type accumulatedCall struct {
	id   string
	name string
	args strings.Builder
}

func newStreamAccumulator() *streamAccumulator {
	return &streamAccumulator{
		byIndex: make(map[int]*accumulatedCall),
		byID:    make(map[string]*accumulatedCall),
	}
}

func (s *streamAccumulator) Add(f Fragment) {
	s.content.WriteString(f.Content)
	for _, tf := range f.ToolCalls {
		call := s.lookup(tf)
		if tf.ID != "" && call.id == "" {
			call.id = tf.ID
			s.byID[tf.ID] = call
		}
		if tf.Name != "" && call.name == "" {
			call.name = tf.Name
		}
		call.args.WriteString(tf.Arguments)
	}
}

func (s *streamAccumulator) lookup(tf ToolCallFragment) *accumulatedCall {
	if tf.ID != "" {
		if c, ok := s.byID[tf.ID]; ok {
			return c
		}
	}
	if c, ok := s.byIndex[tf.Index]; ok && (tf.ID == "" || c.id == "" || c.id == tf.ID) {
		return c
	}
	c := &accumulatedCall{}
	s.calls = append(s.calls, c)
	s.byIndex[tf.Index] = c
	return c
}

// Message returns the accumulated assistant message.
func (s *streamAccumulator) Message() *Message {
	msg := &Message{Role: RoleAssistant, Content: s.content.String()}
	for _, c := range s.calls {
		args := c.args.String()
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:   c.id,
			Type: "function",
			Function: FunctionCall{
				Name:      c.name,
				Arguments: args,
			},
		})
	}
	return msg
}

// drainStream reads every fragment, handing each to emit before it is
// accumulated, and returns the rebuilt message.
func drainStream(stream FragmentStream, emit func(Fragment)) (*Message, error) {
	defer stream.Close()
	acc := newStreamAccumulator()
	for {
		f, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return acc.Message(), nil
		}
		if err != nil {
			return nil, err
		}
		if emit != nil {
			emit(f)
		}
		acc.Add(f)
	}
}

// messageStream replays a complete message as a single fragment. It lets
// non-streaming providers sit behind a streaming interface.
type messageStream struct {
	msg  *Message
	done bool
}

func newMessageStream(msg *Message) *messageStream {
	return &messageStream{msg: msg}
}

func (m *messageStream) Recv() (Fragment, error) {
	if m.done || m.msg == nil {
		return Fragment{}, io.EOF
	}
	m.done = true
	f := Fragment{Content: m.msg.Content}
	for i, tc := range m.msg.ToolCalls {
		f.ToolCalls = append(f.ToolCalls, ToolCallFragment{
			Index:     i,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return f, nil
}

func (m *messageStream) Close() error { return nil }
