package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"fleetmedic/internal/agent"
)

// ExecutionResult is the outcome of running one record through the
// reasoning engine.
type ExecutionResult struct {
	// Text is the concatenation of all narration fragments in emission
	// order.
	Text string

	// ToolInvocations counts the non-text events of the run. The executor
	// does not interpret tool results; the count is telemetry only.
	ToolInvocations int

	// Err is set when the engine failed. A failed record never aborts the
	// enclosing stream.
	Err error
}

// Executor runs records through an engine, one isolated session each.
type Executor struct {
	engine agent.Engine
	logger *zap.Logger
}

// NewExecutor builds an executor over the given engine.
func NewExecutor(engine agent.Engine, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{engine: engine, logger: logger}
}

// Process runs one input through the engine and drains its event stream.
func (e *Executor) Process(ctx context.Context, session Session, input string) ExecutionResult {
	events, errs := e.engine.Run(ctx, input)

	var text strings.Builder
	var toolCount int
	for ev := range events {
		switch ev.Kind {
		case agent.EventText:
			text.WriteString(ev.Text)
		default:
			toolCount++
		}
	}
	err := <-errs

	result := ExecutionResult{
		Text:            text.String(),
		ToolInvocations: toolCount,
		Err:             err,
	}

	if err == nil && toolCount > 0 && result.Text == "" {
		// The engine did work but never narrated. Downstream classification
		// will yield no severity for this record.
		e.logger.Warn("generation produced tool calls but no narration",
			zap.String("session_id", session.ID),
			zap.Int("tool_invocations", toolCount))
	}

	return result
}
