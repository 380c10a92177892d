package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetmedic/internal/reason"
	"fleetmedic/internal/tools"
)

// scriptedClient replays canned results in order.
type scriptedClient struct {
	results []*reason.Result
	errs    []error
	calls   int
}

func (s *scriptedClient) next() (*reason.Result, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.results[i], nil
}

func (s *scriptedClient) GenerateWithTools(context.Context, string, string, []reason.ToolDefinition) (*reason.Result, error) {
	return s.next()
}

func (s *scriptedClient) ContinueWithToolResults(context.Context, string, []reason.Turn, []reason.ToolOutcome, []reason.ToolDefinition) (*reason.Result, error) {
	return s.next()
}

func (s *scriptedClient) Model() string { return "scripted" }

func collect(t *testing.T, events <-chan Event, errs <-chan error) ([]Event, error) {
	t.Helper()
	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	return got, <-errs
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(nil)
	r.MustRegister(&tools.Tool{
		Name:        "probe",
		Description: "probes a device",
		Execute: func(context.Context, map[string]any) (string, error) {
			return "probe output", nil
		},
	})
	r.MustRegister(&tools.Tool{
		Name:        "fail",
		Description: "always fails",
		Execute: func(context.Context, map[string]any) (string, error) {
			return "", errors.New("device unreachable")
		},
	})
	return r
}

func TestRun_TextOnly(t *testing.T) {
	client := &scriptedClient{results: []*reason.Result{
		{Text: "nothing to do. RISK ASSESSMENT: LOW"},
	}}
	engine := NewLLMEngine(client, testRegistry(t), "instruction", 5, nil)

	events, errCh := engine.Run(context.Background(), "input")
	got, err := collect(t, events, errCh)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, EventText, got[0].Kind)
	assert.Contains(t, got[0].Text, "RISK ASSESSMENT: LOW")
}

func TestRun_ToolLoop(t *testing.T) {
	call := reason.ToolCall{ID: "call_0", Name: "probe", Args: map[string]any{}}
	client := &scriptedClient{results: []*reason.Result{
		{ToolCalls: []reason.ToolCall{call}, ModelTurn: reason.Turn{Role: "model", Calls: []reason.ToolCall{call}}},
		{Text: "device probed, all good"},
	}}
	engine := NewLLMEngine(client, testRegistry(t), "instruction", 5, nil)

	events, errCh := engine.Run(context.Background(), "input")
	got, err := collect(t, events, errCh)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, EventToolCall, got[0].Kind)
	assert.Equal(t, "probe", got[0].Tool)
	assert.Equal(t, EventText, got[1].Kind)
	assert.Equal(t, 2, client.calls)
}

func TestRun_ToolFailureFedBack(t *testing.T) {
	call := reason.ToolCall{ID: "call_0", Name: "fail", Args: map[string]any{}}
	client := &scriptedClient{results: []*reason.Result{
		{ToolCalls: []reason.ToolCall{call}, ModelTurn: reason.Turn{Role: "model", Calls: []reason.ToolCall{call}}},
		{Text: "tool failed, reporting anyway"},
	}}
	engine := NewLLMEngine(client, testRegistry(t), "instruction", 5, nil)

	events, errCh := engine.Run(context.Background(), "input")
	got, err := collect(t, events, errCh)
	require.NoError(t, err)
	// A failing tool does not abort the run; its error goes back to the model.
	require.Len(t, got, 2)
	assert.Equal(t, EventToolCall, got[0].Kind)
	assert.Equal(t, "tool failed, reporting anyway", got[1].Text)
}

func TestRun_GenerationError(t *testing.T) {
	client := &scriptedClient{
		results: []*reason.Result{nil},
		errs:    []error{errors.New("backend down")},
	}
	engine := NewLLMEngine(client, testRegistry(t), "instruction", 5, nil)

	events, errCh := engine.Run(context.Background(), "input")
	got, err := collect(t, events, errCh)
	assert.Empty(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestRun_TurnLimit(t *testing.T) {
	call := reason.ToolCall{ID: "call_0", Name: "probe", Args: map[string]any{}}
	looping := &reason.Result{
		ToolCalls: []reason.ToolCall{call},
		ModelTurn: reason.Turn{Role: "model", Calls: []reason.ToolCall{call}},
	}
	client := &scriptedClient{results: []*reason.Result{looping, looping, looping}}
	engine := NewLLMEngine(client, testRegistry(t), "instruction", 2, nil)

	events, errCh := engine.Run(context.Background(), "input")
	got, err := collect(t, events, errCh)
	require.NoError(t, err)
	// Two turns, each emitting one tool call event, then the loop stops.
	assert.Len(t, got, 2)
	assert.Equal(t, 3, client.calls)
}
