package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTool is matched by ConfigurationError.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrRunaway is matched by RunawayError.
	ErrRunaway = errors.New("tool-calling runaway")

	// ErrDuplicateTool is returned when registering a name twice.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrEmptyResponse is returned when a provider answers with no choices.
	ErrEmptyResponse = errors.New("provider returned no response")
)

// ProviderError wraps a failed model call. It is transient: the caller
// decides whether to retry the whole turn.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("provider error: %v", e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ConfigurationError means the model asked for a tool that is not
// registered, i.e. advertised and implemented tools disagree.
type ConfigurationError struct {
	Tool string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: model requested unregistered tool %q", e.Tool)
}

func (e *ConfigurationError) Unwrap() error { return ErrUnknownTool }

// RunawayError means the model kept requesting tools after MaxDepth rounds.
type RunawayError struct {
	MaxDepth int
}

func (e *RunawayError) Error() string {
	return fmt.Sprintf("unable to complete request: tool-calling runaway after %d rounds", e.MaxDepth)
}

func (e *RunawayError) Unwrap() error { return ErrRunaway }

// ToolExecutionError is a failed tool invocation. The loop renders it as the
// tool result so the model can adapt.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("Error: %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
