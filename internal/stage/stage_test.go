package stage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetmedic/internal/a2a"
	"fleetmedic/internal/reason"
)

type staticClient struct{ text string }

func (c *staticClient) GenerateWithTools(context.Context, string, string, []reason.ToolDefinition) (*reason.Result, error) {
	return &reason.Result{Text: c.text, StopReason: "STOP"}, nil
}

func (c *staticClient) ContinueWithToolResults(context.Context, string, []reason.Turn, []reason.ToolOutcome, []reason.ToolDefinition) (*reason.Result, error) {
	return &reason.Result{Text: c.text, StopReason: "STOP"}, nil
}

func (c *staticClient) Model() string { return "gemini-1.5-flash" }

func fetchCard(t *testing.T, st *Stage) a2a.AgentCard {
	t.Helper()
	srv := httptest.NewServer(st.Server.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/.well-known/agent-card.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var card a2a.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	return card
}

func skillIDs(card a2a.AgentCard) []string {
	ids := make([]string, 0, len(card.Skills))
	for _, s := range card.Skills {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestAnalysisStage(t *testing.T) {
	st := Analysis(&staticClient{text: "ok"}, "http://127.0.0.1:8002", "http://127.0.0.1:8001", nil)
	defer st.Close()

	assert.Equal(t, AnalysisAgent, st.Name)
	card := fetchCard(t, st)
	assert.Equal(t, AnalysisAgent, card.Name)
	// One model skill plus four IoT and three camera analyzers.
	assert.Len(t, card.Skills, 8)
	assert.Contains(t, skillIDs(card), "log_analysis_agent-analyze_device_metrics")
	assert.Contains(t, skillIDs(card), "log_analysis_agent-analyze_camera_core_specs")
}

func TestDiagnosisStage(t *testing.T) {
	st := Diagnosis(&staticClient{text: "ok"}, "http://127.0.0.1:8003", "http://127.0.0.1:8002", nil)
	defer st.Close()

	card := fetchCard(t, st)
	assert.Equal(t, DiagnosisAgent, card.Name)
	assert.Len(t, card.Skills, 6)
	assert.Contains(t, skillIDs(card), "diagnosis_agent-assess_severity_level")
}

func TestRemediationStage(t *testing.T) {
	st := Remediation(&staticClient{text: "ok"}, "http://127.0.0.1:8001", "http://127.0.0.1:8003", nil)
	defer st.Close()

	card := fetchCard(t, st)
	assert.Equal(t, RemediationAgent, card.Name)
	assert.Len(t, card.Skills, 7)
	assert.Contains(t, skillIDs(card), "remediation_agent-restart_iot_system")
}

func TestAnalysisStageServesStreamRoute(t *testing.T) {
	st := Analysis(&staticClient{text: "ok"}, "http://127.0.0.1:8002", "http://127.0.0.1:8001", nil)
	defer st.Close()

	srv := httptest.NewServer(st.Server.Mux())
	defer srv.Close()

	// Empty body still reaches the handler and gets the validation error.
	resp, err := http.Post(srv.URL+"/stream_csv", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDiagnosisStageHasNoStreamRoute(t *testing.T) {
	st := Diagnosis(&staticClient{text: "ok"}, "http://127.0.0.1:8003", "http://127.0.0.1:8002", nil)
	defer st.Close()

	srv := httptest.NewServer(st.Server.Mux())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/stream_csv", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
