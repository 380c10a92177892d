// Package ingest reads device-telemetry records from header-bearing tabular
// sources and interleaves multiple sources into a single record stream.
package ingest

import (
	"encoding/json"
	"strings"
)

// Field is one named scalar value of a record.
type Field struct {
	Name  string
	Value string
}

// Record is one unit of input telemetry: an ordered field mapping tagged
// with its originating source and its 1-based position in the merged stream.
// Records are immutable after creation.
type Record struct {
	SourceID string
	Sequence int
	Fields   []Field
}

// Get returns the value of the named field, or "" if absent.
func (r Record) Get(name string) string {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// DeviceID identifies the device a record describes: IoT rows carry a
// Device_ID column, camera rows a Model column.
func (r Record) DeviceID() string {
	if id := r.Get("Device_ID"); id != "" {
		return id
	}
	if id := r.Get("Model"); id != "" {
		return id
	}
	return "unknown"
}

// SchemaType guesses the record's schema from its identifying column.
func (r Record) SchemaType() string {
	switch {
	case r.Get("Device_ID") != "":
		return "IoT"
	case r.Get("Model") != "":
		return "Camera"
	default:
		return "Unknown"
	}
}

// EngineInput serializes the record into the reasoning engine's input
// contract: {"record": {<field>: <value>, ...}} with fields in source order.
func (r Record) EngineInput() string {
	var b strings.Builder
	b.WriteString(`{"record": {`)
	for i, f := range r.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		name, _ := json.Marshal(f.Name)
		value, _ := json.Marshal(f.Value)
		b.Write(name)
		b.WriteString(": ")
		b.Write(value)
	}
	b.WriteString("}}")
	return b.String()
}
