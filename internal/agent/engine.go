// Package agent runs the reasoning loop for one stage: prompt the model,
// execute the tools it requests, feed results back, repeat until the model
// narrates a final answer.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fleetmedic/internal/reason"
	"fleetmedic/internal/tools"
)

// EventKind classifies an engine event.
type EventKind string

const (
	// EventText is a chunk of model narration.
	EventText EventKind = "text"

	// EventToolCall reports one executed tool invocation.
	EventToolCall EventKind = "tool_call"
)

// Event is one unit of engine output.
type Event struct {
	Kind EventKind
	Text string
	Tool string
}

// Engine produces a stream of events for one input.
type Engine interface {
	// Run processes the input and streams events. Both channels are closed
	// when the run finishes; at most one error is sent.
	Run(ctx context.Context, input string) (<-chan Event, <-chan error)
}

// LLMEngine drives a reason.Client through the registry's tools.
type LLMEngine struct {
	client      reason.Client
	registry    *tools.Registry
	instruction string
	maxTurns    int
	logger      *zap.Logger
}

// NewLLMEngine builds an engine. maxTurns bounds the tool loop; values
// below 1 default to 10.
func NewLLMEngine(client reason.Client, registry *tools.Registry, instruction string, maxTurns int, logger *zap.Logger) *LLMEngine {
	if maxTurns < 1 {
		maxTurns = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMEngine{
		client:      client,
		registry:    registry,
		instruction: instruction,
		maxTurns:    maxTurns,
		logger:      logger,
	}
}

// definitions renders the registry's tools for the client.
func (e *LLMEngine) definitions() []reason.ToolDefinition {
	all := e.registry.All()
	defs := make([]reason.ToolDefinition, 0, len(all))
	for _, t := range all {
		defs = append(defs, reason.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema.Parameters(),
		})
	}
	return defs
}

// Run implements Engine.
func (e *LLMEngine) Run(ctx context.Context, input string) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		defs := e.definitions()
		history := []reason.Turn{{Role: "user", Text: input}}

		result, err := e.client.GenerateWithTools(ctx, e.instruction, input, defs)
		if err != nil {
			errs <- fmt.Errorf("generation failed: %w", err)
			return
		}

		for turn := 0; turn < e.maxTurns; turn++ {
			if result.Text != "" {
				select {
				case events <- Event{Kind: EventText, Text: result.Text}:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			if !result.HasToolCalls() {
				return
			}

			history = append(history, result.ModelTurn)

			outcomes := make([]reason.ToolOutcome, 0, len(result.ToolCalls))
			for _, call := range result.ToolCalls {
				res, execErr := e.registry.Execute(ctx, call.Name, call.Args)
				outcome := reason.ToolOutcome{CallID: call.ID, Name: call.Name}
				if execErr != nil {
					e.logger.Warn("tool execution failed",
						zap.String("tool", call.Name), zap.Error(execErr))
					outcome.Content = execErr.Error()
					outcome.IsError = true
				} else {
					outcome.Content = res.Output
				}
				outcomes = append(outcomes, outcome)

				select {
				case events <- Event{Kind: EventToolCall, Tool: call.Name}:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			// The client appends the outcomes as the function turn; keep the
			// local history in step for the next round.
			result, err = e.client.ContinueWithToolResults(ctx, e.instruction, history, outcomes, defs)
			if err != nil {
				errs <- fmt.Errorf("continuation failed: %w", err)
				return
			}
			history = append(history, reason.Turn{Role: "function", Outcomes: outcomes})
		}

		e.logger.Warn("tool loop hit turn limit", zap.Int("max_turns", e.maxTurns))
	}()

	return events, errs
}

var _ Engine = (*LLMEngine)(nil)
