// Package severity defines the ordered urgency classification that drives
// forwarding between stages, and the classifier that extracts a level from
// free-text analysis reports.
package severity

import (
	"fmt"
	"strings"
)

// Level is an urgency classification. Levels are totally ordered:
// Low < Medium < High < Critical.
type Level int

const (
	Low Level = iota
	Medium
	High
	Critical
)

// levels in descending order. Keyword fallback scanning must check the most
// severe level first, since a report can mention several level words.
var descending = [...]Level{Critical, High, Medium, Low}

func (l Level) String() string {
	switch l {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	case Critical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalJSON encodes the level as its upper-case name.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON decodes an upper-case level name.
func (l *Level) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, ok := Parse(s)
	if !ok {
		return fmt.Errorf("unknown severity level %q", s)
	}
	*l = parsed
	return nil
}

// Parse returns the level named by s, case-insensitively.
func Parse(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return Low, true
	case "MEDIUM":
		return Medium, true
	case "HIGH":
		return High, true
	case "CRITICAL":
		return Critical, true
	default:
		return 0, false
	}
}

// RequiresForwarding reports whether a record classified at this level must
// be handed to the next stage. Low is terminal at the current stage.
func (l Level) RequiresForwarding() bool {
	return l >= Medium
}

const assessmentMarker = "RISK ASSESSMENT:"

// Classify extracts a severity level from free-text analysis output.
//
// A labelled "RISK ASSESSMENT: <LEVEL>" marker is authoritative when present;
// otherwise the text is scanned for bare level keywords in descending
// severity order, so the most severe level mentioned anywhere wins. Empty or
// unclassifiable text returns ok=false.
func Classify(text string) (Level, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	upper := strings.ToUpper(text)

	if strings.Contains(upper, assessmentMarker) {
		for _, l := range descending {
			if strings.Contains(upper, assessmentMarker+" "+l.String()) {
				return l, true
			}
		}
		// Marker present but no recognized level follows it. The marker is
		// authoritative, so the keyword fallback is skipped.
		return 0, false
	}

	for _, l := range descending {
		if strings.Contains(upper, l.String()) {
			return l, true
		}
	}
	return 0, false
}

// Counts accumulates per-level totals for a stream. Field order matches the
// response document's severity_counts object.
type Counts struct {
	Low      int `json:"LOW"`
	Medium   int `json:"MEDIUM"`
	High     int `json:"HIGH"`
	Critical int `json:"CRITICAL"`
}

// Add increments the bucket for l.
func (c *Counts) Add(l Level) {
	switch l {
	case Low:
		c.Low++
	case Medium:
		c.Medium++
	case High:
		c.High++
	case Critical:
		c.Critical++
	}
}
