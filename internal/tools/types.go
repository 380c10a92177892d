// Package tools provides the analyzer registry shared by all three stages.
//
// Each stage registers its own analyzer set (IoT and camera scoring for the
// analysis stage, report diagnostics for the diagnosis stage, device actions
// for the remediation stage). The reasoning engine selects among them via
// function calling, and every execution is counted against the request's
// telemetry counter.
package tools

import (
	"context"
	"fmt"
	"strconv"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Schema defines the JSON schema for tool arguments.
type Schema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// Parameters renders the schema in the object form the reasoning engine's
// function-declaration wire format expects.
func (s Schema) Parameters() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
	}
	params := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		params["required"] = s.Required
	}
	return params
}

// ExecuteFunc is the signature for tool execution.
// Returns the result string and any error.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is one analyzer the reasoning engine can invoke.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does. Exposed to the reasoning
	// engine and in the stage's discovery document.
	Description string

	// Tags classify the tool in the discovery document's skill list.
	Tags []string

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema Schema
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Result wraps the outcome of one tool execution with metadata.
type Result struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Output is the string output from the tool.
	Output string

	// Err is set if the tool failed.
	Err error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *Result) IsSuccess() bool {
	return r.Err == nil
}

// Function-call arguments arrive as decoded JSON, so numbers are float64
// and scalars may need coercion.

// StringArg extracts a string argument, tolerating non-string scalars.
func StringArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FloatArg extracts a numeric argument, accepting numeric strings.
func FloatArg(args map[string]any, name string) float64 {
	switch v := args[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// IntArg extracts an integer argument.
func IntArg(args map[string]any, name string) int {
	return int(FloatArg(args, name))
}

// BoolArg extracts a boolean argument.
func BoolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
