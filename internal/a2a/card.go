package a2a

import (
	"fleetmedic/internal/tools"
)

// AgentCard is the discovery document served at
// /.well-known/agent-card.json.
type AgentCard struct {
	Capabilities                      map[string]any `json:"capabilities"`
	DefaultInputModes                 []string       `json:"defaultInputModes"`
	DefaultOutputModes                []string       `json:"defaultOutputModes"`
	Description                       string         `json:"description"`
	Name                              string         `json:"name"`
	PreferredTransport                string         `json:"preferredTransport"`
	ProtocolVersion                   string         `json:"protocolVersion"`
	Skills                            []Skill        `json:"skills"`
	SupportsAuthenticatedExtendedCard bool           `json:"supportsAuthenticatedExtendedCard"`
	URL                               string         `json:"url"`
	Version                           string         `json:"version"`
}

// Skill is one advertised capability: the model itself plus one entry per
// registered tool.
type Skill struct {
	Description string   `json:"description"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Tags        []string `json:"tags"`
}

// NewCard builds the discovery card for a stage from its tool registry.
func NewCard(name, description, url string, registry *tools.Registry) AgentCard {
	skills := []Skill{{
		Description: description,
		ID:          name,
		Name:        "model",
		Tags:        []string{"llm", "expert", "multi-schema", "diagnostic", "a2a"},
	}}
	for _, t := range registry.All() {
		skills = append(skills, Skill{
			Description: t.Description,
			ID:          name + "-" + t.Name,
			Name:        t.Name,
			Tags:        t.Tags,
		})
	}

	return AgentCard{
		Capabilities:       map[string]any{},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Description:        description,
		Name:               name,
		PreferredTransport: "JSONRPC",
		ProtocolVersion:    "0.3.0",
		Skills:             skills,
		URL:                url,
		Version:            "2.0.0",
	}
}
