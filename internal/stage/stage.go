// Package stage assembles the three pipeline agents: analysis ingests
// telemetry and reports, diagnosis deep-dives forwarded anomalies, and
// remediation acts on devices and confirms back to analysis.
package stage

import (
	"go.uber.org/zap"

	"fleetmedic/internal/a2a"
	"fleetmedic/internal/agent"
	"fleetmedic/internal/cost"
	"fleetmedic/internal/pipeline"
	"fleetmedic/internal/reason"
	"fleetmedic/internal/tools"
	"fleetmedic/internal/tools/camera"
	"fleetmedic/internal/tools/diagnosis"
	"fleetmedic/internal/tools/iot"
	"fleetmedic/internal/tools/remediation"
)

// Stage names, also used as cost-ledger agent names.
const (
	AnalysisAgent    = "log_analysis_agent"
	DiagnosisAgent   = "diagnosis_agent"
	RemediationAgent = "remediation_agent"
)

// Tool-work floors per stage: a task falling short of its stage's floor is
// logged as partial (or missed at zero).
const (
	// The analysis stage's tool work is tallied per streamed record, not per
	// task, so its task floor is zero.
	analysisExpectedMinTools    = 0
	diagnosisExpectedMinTools   = 4
	remediationExpectedMinTools = 1
)

const maxEngineTurns = 10

const analysisInstruction = `Analyze device records and write reports.
You will get a single record at a time; identify whether it is an IoT device or a camera log.
IoT records carry Device_ID, CPU_Usage (%), Memory_Usage (%), Battery_Level (%) and similar fields.
Camera records carry Model, Max resolution, Effective pixels, Zoom wide, Price and similar fields.
Call the appropriate tools for the device type, then write a report based on the tool results.
For IoT: "COMPREHENSIVE IoT DIAGNOSTIC REPORT - Device [id]"
For Cameras: "CAMERA SPEC ANALYSIS - Model [name]"
The report must repeat every key and value of the record under a "LOG REFERENCE DATA:" section, followed by the tool results.
End the report with a line "RISK ASSESSMENT: [LOW/MEDIUM/HIGH/CRITICAL]" reflecting the overall severity.`

const diagnosisInstruction = `You receive diagnostic reports from the log analysis agent.

PROCESS:
1. Identify the device type (IoT or Camera) from the report.
2. Call ALL applicable tools independently with the SAME original report:
   - For IoT: diagnose_iot_device(report)
   - For Camera: diagnose_camera_equipment(report)
   - Always: analyze_root_cause(report), assess_severity_level(report), generate_remediation_plan(report)
3. Create a comprehensive diagnosis combining all tool results, including the risk assessment line from assess_severity_level.

CRITICAL: every tool works independently; pass the SAME original report to each tool.`

const remediationInstruction = `You are a specialized remediation agent for IoT devices and camera systems.

WORKFLOW:
1. Identify the device type (IoT or Camera) and the specific issues from the diagnosis report.
2. Select the matching tools:
   For IoT devices: restart_iot_system, adjust_iot_settings, calibrate_iot_sensors.
   For camera systems: restart_camera_system, adjust_camera_brightness, adjust_camera_focus.
3. Execute 1-3 remediation actions based on the diagnosed issues.
4. Consolidate all results into a clear status summary.

Your final confirmation MUST include:
- "Remediation Status: [SUCCESS/PARTIAL/FAILURE]"
- "Device Type: [IoT/Camera]"
- "Actions Taken: [list of specific actions performed]"
- "Results Summary: [brief outcome description]"

Keep responses concise and focused on remediation outcomes.`

// Stage is one assembled agent, ready to serve.
type Stage struct {
	Name   string
	Server *a2a.Server
	Ledger *cost.Ledger

	clients []*a2a.Client
}

// Close shuts down the stage's outbound clients, draining queued forwards.
func (s *Stage) Close() {
	for _, c := range s.clients {
		c.Close()
	}
}

// Analysis builds the ingest stage: IoT and camera analyzers, the record
// stream pipeline, and MEDIUM+ forwarding to the diagnosis stage.
func Analysis(client reason.Client, diagnosisURL, selfURL string, logger *zap.Logger) *Stage {
	registry := tools.NewRegistry(logger)
	iot.Register(registry)
	camera.Register(registry)

	engine := agent.NewLLMEngine(client, registry, analysisInstruction, maxEngineTurns, logger)
	ledger := cost.NewLedger(AnalysisAgent, logger)
	forward := a2a.NewClient(diagnosisURL, logger)
	gate := pipeline.NewGate(forward, logger)
	pipe := pipeline.New(pipeline.NewExecutor(engine, logger), gate, ledger, client.Model(), logger)

	card := a2a.NewCard(AnalysisAgent,
		"Expert multi-schema analysis agent that generates comprehensive diagnostic reports with LOG REFERENCE DATA for IoT devices and camera equipment",
		selfURL, registry)

	server := a2a.NewServer(a2a.ServerConfig{
		Card:             card,
		Engine:           engine,
		Pipeline:         pipe,
		Gate:             gate,
		Ledger:           ledger,
		Model:            client.Model(),
		ExpectedMinTools: analysisExpectedMinTools,
		Logger:           logger,
	})

	return &Stage{Name: AnalysisAgent, Server: server, Ledger: ledger, clients: []*a2a.Client{forward}}
}

// Diagnosis builds the middle stage: independent report diagnostics and
// MEDIUM+ forwarding to the remediation stage.
func Diagnosis(client reason.Client, remediationURL, selfURL string, logger *zap.Logger) *Stage {
	registry := tools.NewRegistry(logger)
	diagnosis.Register(registry)

	engine := agent.NewLLMEngine(client, registry, diagnosisInstruction, maxEngineTurns, logger)
	ledger := cost.NewLedger(DiagnosisAgent, logger)
	forward := a2a.NewClient(remediationURL, logger)
	gate := pipeline.NewGate(forward, logger)

	card := a2a.NewCard(DiagnosisAgent,
		"Expert diagnosis agent performing threshold-based IoT device diagnostics and camera equipment analysis with metric extraction from LOG REFERENCE DATA sections",
		selfURL, registry)

	server := a2a.NewServer(a2a.ServerConfig{
		Card:             card,
		Engine:           engine,
		Gate:             gate,
		Ledger:           ledger,
		Model:            client.Model(),
		ExpectedMinTools: diagnosisExpectedMinTools,
		Logger:           logger,
	})

	return &Stage{Name: DiagnosisAgent, Server: server, Ledger: ledger, clients: []*a2a.Client{forward}}
}

// Remediation builds the final stage: device actions plus confirmation back
// to the analysis stage. It forwards nowhere.
func Remediation(client reason.Client, analysisURL, selfURL string, logger *zap.Logger) *Stage {
	registry := tools.NewRegistry(logger)
	remediation.Register(registry)

	engine := agent.NewLLMEngine(client, registry, remediationInstruction, maxEngineTurns, logger)
	ledger := cost.NewLedger(RemediationAgent, logger)
	confirm := a2a.NewClient(analysisURL, logger)

	card := a2a.NewCard(RemediationAgent,
		"Device-specific remediation agent for IoT devices and camera systems with cost tracking and confirmation reporting",
		selfURL, registry)

	server := a2a.NewServer(a2a.ServerConfig{
		Card:             card,
		Engine:           engine,
		Confirmer:        confirm,
		Ledger:           ledger,
		Model:            client.Model(),
		ExpectedMinTools: remediationExpectedMinTools,
		Logger:           logger,
	})

	return &Stage{Name: RemediationAgent, Server: server, Ledger: ledger, clients: []*a2a.Client{confirm}}
}
