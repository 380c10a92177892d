package pipeline

import (
	"encoding/json"
	"io"
	"net/http"

	"fleetmedic/internal/cost"
	"fleetmedic/internal/severity"
)

// SuccessEvent is the streamed payload for a completed record.
type SuccessEvent struct {
	Row      int             `json:"row"`
	Source   string          `json:"source"`
	DeviceID string          `json:"device_id"`
	Response string          `json:"response"`
	Severity *severity.Level `json:"severity"`
}

// ErrorEvent is the streamed payload for a record whose execution failed.
type ErrorEvent struct {
	Row      int    `json:"row"`
	Source   string `json:"source"`
	DeviceID string `json:"device_id"`
	Error    string `json:"error"`
}

// Encoder writes the response document incrementally so a client can
// consume events as they complete. Every prefix of the output up to a
// closed event is parseable once the trailer is appended.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
	wrote   bool
}

// NewEncoder wraps the writer. When the writer supports http.Flusher,
// every write is flushed so events reach the client immediately.
func NewEncoder(w io.Writer) *Encoder {
	flusher, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: flusher}
}

func (e *Encoder) emit(s string) error {
	if _, err := io.WriteString(e.w, s); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Begin writes the document header.
func (e *Encoder) Begin() error {
	return e.emit(`{"status": "streaming", "results": [`)
}

// WriteEvent appends one event to the results array.
func (e *Encoder) WriteEvent(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	prefix := ""
	if e.wrote {
		prefix = ", "
	}
	e.wrote = true
	return e.emit(prefix + string(payload))
}

// End closes the results array and writes the severity tally, the cost
// summary and the completion marker.
func (e *Encoder) End(counts severity.Counts, summary cost.Summary) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return e.emit(`], "severity_counts": ` + string(countsJSON) +
		`, "cost_summary": ` + string(summaryJSON) +
		`, "status": "completed"}`)
}
