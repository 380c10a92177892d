// Package a2a implements the inter-agent surface of a stage: the discovery
// card, the HTTP server and the fire-and-forget forwarding client.
package a2a

// TaskRequest is the payload one stage posts to the next stage's task
// endpoint.
type TaskRequest struct {
	AnomalyDetails string `json:"anomaly_details"`
	DeviceID       string `json:"device_id"`
	SchemaType     string `json:"schema_type"`
	Severity       string `json:"severity"`
	SourceContext  string `json:"source_context"`
}

// TaskResponse reports the outcome of one task execution.
type TaskResponse struct {
	Status    string `json:"status"`
	Response  string `json:"response"`
	ToolCalls int    `json:"tool_calls"`
	Outcome   string `json:"outcome"`
}

// Confirmation closes the loop: the remediation stage posts one back to the
// analysis stage after acting on a device.
type Confirmation struct {
	DeviceID     string   `json:"device_id"`
	Status       string   `json:"status"`
	ActionsTaken []string `json:"actions_taken"`
	Summary      string   `json:"summary"`
}
