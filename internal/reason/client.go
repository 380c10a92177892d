// Package reason talks to the LLM backend that drives each stage's tool
// selection and narration.
package reason

import "context"

// ToolDefinition describes one callable tool in the provider-neutral form
// the engine hands to the client.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolOutcome is the executed result of a ToolCall, passed back to the
// model on the next turn.
type ToolOutcome struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Turn is one entry of the conversation history. The engine accumulates
// turns across the tool loop and replays them on every continuation.
type Turn struct {
	// Role is "user", "model" or "function".
	Role string

	// Text carries prompt or narration text for user and model turns.
	Text string

	// Calls holds the function calls of a model turn.
	Calls []ToolCall

	// Outcomes holds the executed results of a function turn.
	Outcomes []ToolOutcome
}

// Result is one model response: narration text, any requested tool calls,
// and the model turn to append to the history before continuing.
type Result struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
	ModelTurn  Turn
}

// HasToolCalls reports whether the model asked for tool execution.
func (r *Result) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Client is the LLM backend interface.
type Client interface {
	// GenerateWithTools starts a conversation with a user prompt and the
	// available tool declarations.
	GenerateWithTools(ctx context.Context, system, user string, tools []ToolDefinition) (*Result, error)

	// ContinueWithToolResults replays the history plus the executed tool
	// outcomes and returns the model's next turn.
	ContinueWithToolResults(ctx context.Context, system string, history []Turn, outcomes []ToolOutcome, tools []ToolDefinition) (*Result, error)

	// Model returns the backing model identifier.
	Model() string
}
