package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"fleetmedic/internal/agent"
	"fleetmedic/internal/cost"
	"fleetmedic/internal/ingest"
	"fleetmedic/internal/pipeline"
	"fleetmedic/internal/severity"
	"fleetmedic/internal/telemetry"
)

// TaskUserID tags sessions created for inter-agent task requests.
const TaskUserID = "a2a_user"

// Confirmer sends a remediation confirmation back up the chain.
type Confirmer interface {
	Confirm(ctx context.Context, conf Confirmation) error
}

// ServerConfig assembles one stage's HTTP surface.
type ServerConfig struct {
	Card   AgentCard
	Engine agent.Engine

	// Pipeline enables the streaming ingest endpoint. Only the analysis
	// stage sets it.
	Pipeline *pipeline.Pipeline

	// Gate forwards task output to the next stage. Nil on the final stage.
	Gate *pipeline.Gate

	// Confirmer closes the loop back to the analysis stage. Only the
	// remediation stage sets it.
	Confirmer Confirmer

	Ledger *cost.Ledger
	Model  string

	// ExpectedMinTools is the number of tool invocations a task must reach
	// to count as complete work.
	ExpectedMinTools int

	Logger *zap.Logger
}

// Server is one stage's HTTP surface.
type Server struct {
	cfg    ServerConfig
	logger *zap.Logger
}

// NewServer builds a stage server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Server{cfg: cfg, logger: cfg.Logger}
}

// Mux returns the stage's routes.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/agent-card.json", s.handleCard)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /a2a/task", s.handleTask)
	mux.HandleFunc("POST /a2a/confirm", s.handleConfirm)
	if s.cfg.Pipeline != nil {
		mux.HandleFunc("POST /stream_csv", s.handleStreamCSV)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Card)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "agent": s.cfg.Card.Name})
}

type streamRequest struct {
	CSVPath  string   `json:"csv_path"`
	CSVPaths []string `json:"csv_paths"`
}

func (s *Server) handleStreamCSV(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var sources []string
	switch {
	case len(req.CSVPaths) > 0:
		sources = req.CSVPaths
	case req.CSVPath != "":
		sources = []string{req.CSVPath}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "csv_path or csv_paths is required"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err := s.cfg.Pipeline.Run(r.Context(), sources, w)
	if err == nil {
		return
	}

	var ingestErr *ingest.IngestError
	if errors.As(err, &ingestErr) {
		// Source-open failures surface before anything is streamed, so a
		// clean error response is still possible.
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ingestErr.Error()})
		return
	}
	s.logger.Error("stream aborted mid-flight", zap.Error(err))
}

var remediationStatusRe = regexp.MustCompile(`Remediation Status:\s*([A-Z]+)`)

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.AnomalyDetails) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "anomaly_details is required"})
		return
	}

	// Fresh counter per request: the tally below reflects only this task's
	// tool work.
	counter := &telemetry.Counter{}
	ctx := telemetry.NewContext(r.Context(), counter)
	session := pipeline.NewSession(TaskUserID)

	input := s.taskInput(req)
	s.logger.Info("task received",
		zap.String("device_id", req.DeviceID),
		zap.String("severity_in", req.Severity),
		zap.String("session_id", session.ID))

	events, errs := s.cfg.Engine.Run(ctx, input)
	var text strings.Builder
	var toolNames []string
	for ev := range events {
		switch ev.Kind {
		case agent.EventText:
			text.WriteString(ev.Text)
		case agent.EventToolCall:
			toolNames = append(toolNames, ev.Tool)
		}
	}
	if err := <-errs; err != nil {
		s.logger.Error("task execution failed",
			zap.String("device_id", req.DeviceID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	response := text.String()

	s.cfg.Ledger.LogRequestCost(
		s.cfg.Ledger.NewTransactionID(),
		s.cfg.Model,
		cost.EstimateTokens(input),
		cost.EstimateTokens(response),
		"a2a_task",
		map[string]any{
			"device_id":       req.DeviceID,
			"tool_calls":      counter.Count(),
			"response_length": len(response),
			"severity_in":     req.Severity,
		})

	outcome := telemetry.Evaluate(counter.Count(), s.cfg.ExpectedMinTools)
	switch outcome {
	case telemetry.OutcomeComplete:
		s.logger.Info("task tool work complete",
			zap.Int("tool_calls", counter.Count()),
			zap.Int("expected_min", s.cfg.ExpectedMinTools))
	case telemetry.OutcomePartial:
		s.logger.Warn("partial tool execution",
			zap.Int("tool_calls", counter.Count()),
			zap.Int("expected_min", s.cfg.ExpectedMinTools))
	case telemetry.OutcomeMissed:
		s.logger.Error("no tools called for task",
			zap.String("device_id", req.DeviceID),
			zap.Int("expected_min", s.cfg.ExpectedMinTools))
	}

	level, classified := severity.Classify(response)
	if s.cfg.Gate != nil {
		s.cfg.Gate.Dispatch(ctx, level, classified, pipeline.ForwardRequest{
			AnomalyDetails: response,
			DeviceID:       req.DeviceID,
			SchemaType:     req.SchemaType,
			SourceContext:  req.SourceContext,
		})
	}

	if s.cfg.Confirmer != nil {
		s.sendConfirmation(ctx, req, response, toolNames)
	}

	writeJSON(w, http.StatusOK, TaskResponse{
		Status:    "completed",
		Response:  response,
		ToolCalls: counter.Count(),
		Outcome:   string(outcome),
	})
}

// sendConfirmation reports remediation results back up the chain. The
// status comes from the agent's mandated "Remediation Status" line, falling
// back to whether any action ran at all.
func (s *Server) sendConfirmation(ctx context.Context, req TaskRequest, response string, actions []string) {
	status := "FAILURE"
	if m := remediationStatusRe.FindStringSubmatch(response); m != nil {
		status = m[1]
	} else if len(actions) > 0 {
		status = "PARTIAL"
	}

	conf := Confirmation{
		DeviceID:     req.DeviceID,
		Status:       status,
		ActionsTaken: actions,
		Summary:      response,
	}
	if err := s.cfg.Confirmer.Confirm(ctx, conf); err != nil {
		s.logger.Warn("confirmation delivery failed",
			zap.String("device_id", req.DeviceID), zap.Error(err))
		return
	}
	s.logger.Info("confirmation sent",
		zap.String("device_id", req.DeviceID),
		zap.String("status", status),
		zap.Int("actions", len(actions)))
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var conf Confirmation
	if err := json.NewDecoder(r.Body).Decode(&conf); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	s.logger.Info("remediation confirmed",
		zap.String("device_id", conf.DeviceID),
		zap.String("status", conf.Status),
		zap.Strings("actions_taken", conf.ActionsTaken))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}

// taskInput renders the upstream request into the engine's prompt.
func (s *Server) taskInput(req TaskRequest) string {
	var b strings.Builder
	if req.DeviceID != "" {
		fmt.Fprintf(&b, "Device: %s\n", req.DeviceID)
	}
	if req.SchemaType != "" {
		fmt.Fprintf(&b, "Schema: %s\n", req.SchemaType)
	}
	if req.Severity != "" {
		fmt.Fprintf(&b, "Upstream severity: %s\n", req.Severity)
	}
	if req.SourceContext != "" {
		fmt.Fprintf(&b, "Source: %s\n", req.SourceContext)
	}
	b.WriteString("\n")
	b.WriteString(req.AnomalyDetails)
	return b.String()
}
