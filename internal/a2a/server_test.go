package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetmedic/internal/agent"
	"fleetmedic/internal/cost"
	"fleetmedic/internal/pipeline"
	"fleetmedic/internal/severity"
	"fleetmedic/internal/telemetry"
	"fleetmedic/internal/tools"
)

// stubEngine emits scripted events and bumps the request counter to mimic
// registry executions.
type stubEngine struct {
	text      string
	toolCalls []string
	err       error
}

func (s *stubEngine) Run(ctx context.Context, _ string) (<-chan agent.Event, <-chan error) {
	events := make(chan agent.Event, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		counter := telemetry.FromContext(ctx)
		for _, name := range s.toolCalls {
			if counter != nil {
				counter.Inc()
			}
			events <- agent.Event{Kind: agent.EventToolCall, Tool: name}
		}
		if s.text != "" {
			events <- agent.Event{Kind: agent.EventText, Text: s.text}
		}
		if s.err != nil {
			errs <- s.err
		}
	}()
	return events, errs
}

type captureForwarder struct {
	mu   sync.Mutex
	reqs []pipeline.ForwardRequest
}

func (c *captureForwarder) Forward(_ context.Context, req pipeline.ForwardRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
}

type captureConfirmer struct {
	mu    sync.Mutex
	confs []Confirmation
}

func (c *captureConfirmer) Confirm(_ context.Context, conf Confirmation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confs = append(c.confs, conf)
	return nil
}

func testCard(t *testing.T) AgentCard {
	t.Helper()
	r := tools.NewRegistry(nil)
	r.MustRegister(&tools.Tool{
		Name:        "probe",
		Description: "probes a device",
		Tags:        []string{"iot"},
		Execute: func(context.Context, map[string]any) (string, error) {
			return "ok", nil
		},
	})
	return NewCard("diagnosis_agent", "diagnoses devices", "http://127.0.0.1:8002", r)
}

func newTaskServer(t *testing.T, cfg ServerConfig) *httptest.Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Ledger == nil {
		cfg.Ledger = cost.NewLedger("test_agent", zap.NewNop())
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	srv := httptest.NewServer(NewServer(cfg).Mux())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAgentCardEndpoint(t *testing.T) {
	srv := newTaskServer(t, ServerConfig{Card: testCard(t), Engine: &stubEngine{}})

	resp, err := http.Get(srv.URL + "/.well-known/agent-card.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, "diagnosis_agent", card.Name)
	require.Len(t, card.Skills, 2)
	assert.Equal(t, "model", card.Skills[0].Name)
	assert.Equal(t, "probe", card.Skills[1].Name)
	assert.Equal(t, "diagnosis_agent-probe", card.Skills[1].ID)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTaskServer(t, ServerConfig{Card: testCard(t), Engine: &stubEngine{}})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTask_CompleteRunForwardsDownstream(t *testing.T) {
	fw := &captureForwarder{}
	ledger := cost.NewLedger("diagnosis_agent", zap.NewNop())
	srv := newTaskServer(t, ServerConfig{
		Card: testCard(t),
		Engine: &stubEngine{
			text:      "Diagnosis complete. RISK ASSESSMENT: HIGH",
			toolCalls: []string{"diagnose_iot_device", "analyze_root_cause", "assess_severity_level", "generate_remediation_plan"},
		},
		Gate:             pipeline.NewGate(fw, zap.NewNop()),
		Ledger:           ledger,
		ExpectedMinTools: 4,
	})

	resp := postJSON(t, srv.URL+"/a2a/task", TaskRequest{
		AnomalyDetails: "report body",
		DeviceID:       "DEV42",
		SchemaType:     "IoT",
		Severity:       "HIGH",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var task TaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	assert.Equal(t, "completed", task.Status)
	assert.Equal(t, 4, task.ToolCalls)
	assert.Equal(t, string(telemetry.OutcomeComplete), task.Outcome)
	assert.Contains(t, task.Response, "RISK ASSESSMENT: HIGH")

	require.Len(t, fw.reqs, 1)
	assert.Equal(t, "DEV42", fw.reqs[0].DeviceID)
	assert.Equal(t, severity.High.String(), fw.reqs[0].Severity)

	assert.Equal(t, 1, ledger.Len())
}

func TestTask_LowSeverityIsTerminal(t *testing.T) {
	fw := &captureForwarder{}
	srv := newTaskServer(t, ServerConfig{
		Card:             testCard(t),
		Engine:           &stubEngine{text: "All fine. RISK ASSESSMENT: LOW", toolCalls: []string{"probe"}},
		Gate:             pipeline.NewGate(fw, zap.NewNop()),
		ExpectedMinTools: 4,
	})

	resp := postJSON(t, srv.URL+"/a2a/task", TaskRequest{AnomalyDetails: "report", DeviceID: "D1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var task TaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	assert.Equal(t, string(telemetry.OutcomePartial), task.Outcome)
	assert.Empty(t, fw.reqs)
}

func TestTask_MissingDetailsRejected(t *testing.T) {
	srv := newTaskServer(t, ServerConfig{Card: testCard(t), Engine: &stubEngine{}})

	resp := postJSON(t, srv.URL+"/a2a/task", TaskRequest{DeviceID: "D1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTask_RemediationSendsConfirmation(t *testing.T) {
	confirmer := &captureConfirmer{}
	srv := newTaskServer(t, ServerConfig{
		Card: testCard(t),
		Engine: &stubEngine{
			text:      "Remediation Status: SUCCESS\nDevice Type: IoT\nActions Taken: restart",
			toolCalls: []string{"restart_iot_system"},
		},
		Confirmer:        confirmer,
		ExpectedMinTools: 1,
	})

	resp := postJSON(t, srv.URL+"/a2a/task", TaskRequest{AnomalyDetails: "diagnosis", DeviceID: "DEV7"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, confirmer.confs, 1)
	conf := confirmer.confs[0]
	assert.Equal(t, "DEV7", conf.DeviceID)
	assert.Equal(t, "SUCCESS", conf.Status)
	assert.Equal(t, []string{"restart_iot_system"}, conf.ActionsTaken)
}

func TestConfirmEndpoint(t *testing.T) {
	srv := newTaskServer(t, ServerConfig{Card: testCard(t), Engine: &stubEngine{}})

	resp := postJSON(t, srv.URL+"/a2a/confirm", Confirmation{
		DeviceID: "DEV1", Status: "SUCCESS", ActionsTaken: []string{"restart_iot_system"},
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestStreamCSV_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.csv")
	require.NoError(t, os.WriteFile(path, []byte("Device_ID,CPU\nD1,95\n"), 0o644))

	engine := &stubEngine{text: "overloaded. RISK ASSESSMENT: HIGH", toolCalls: []string{"probe"}}
	ledger := cost.NewLedger("log_analysis_agent", zap.NewNop())
	pipe := pipeline.New(
		pipeline.NewExecutor(engine, zap.NewNop()),
		pipeline.NewGate(nil, zap.NewNop()),
		ledger, "gemini-1.5-flash", zap.NewNop())

	srv := newTaskServer(t, ServerConfig{
		Card:     testCard(t),
		Engine:   engine,
		Pipeline: pipe,
		Ledger:   ledger,
	})

	resp := postJSON(t, srv.URL+"/stream_csv", map[string]any{"csv_path": path})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Status         string            `json:"status"`
		Results        []json.RawMessage `json:"results"`
		SeverityCounts severity.Counts   `json:"severity_counts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "completed", doc.Status)
	require.Len(t, doc.Results, 1)
	assert.Equal(t, 1, doc.SeverityCounts.High)
}

func TestStreamCSV_MissingPathRejected(t *testing.T) {
	engine := &stubEngine{}
	pipe := pipeline.New(
		pipeline.NewExecutor(engine, zap.NewNop()),
		pipeline.NewGate(nil, zap.NewNop()),
		cost.NewLedger("log_analysis_agent", zap.NewNop()), "gemini-1.5-flash", zap.NewNop())
	srv := newTaskServer(t, ServerConfig{Card: testCard(t), Engine: engine, Pipeline: pipe})

	resp := postJSON(t, srv.URL+"/stream_csv", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "csv_path or csv_paths is required", body["error"])
}

func TestStreamCSV_UnopenableSourceRejected(t *testing.T) {
	engine := &stubEngine{}
	pipe := pipeline.New(
		pipeline.NewExecutor(engine, zap.NewNop()),
		pipeline.NewGate(nil, zap.NewNop()),
		cost.NewLedger("log_analysis_agent", zap.NewNop()), "gemini-1.5-flash", zap.NewNop())
	srv := newTaskServer(t, ServerConfig{Card: testCard(t), Engine: engine, Pipeline: pipe})

	resp := postJSON(t, srv.URL+"/stream_csv", map[string]any{"csv_path": "/no/such/file.csv"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "/no/such/file.csv")
}

func TestStreamCSV_NotRoutedWithoutPipeline(t *testing.T) {
	srv := newTaskServer(t, ServerConfig{Card: testCard(t), Engine: &stubEngine{}})

	resp := postJSON(t, srv.URL+"/stream_csv", map[string]any{"csv_path": "x.csv"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
