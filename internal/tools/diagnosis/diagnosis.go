// Package diagnosis provides the report diagnostics registered with the
// diagnosis stage. Every tool extracts its own metrics directly from the
// upstream report's LOG REFERENCE DATA section, so no tool depends on the
// output of another.
package diagnosis

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fleetmedic/internal/tools"
)

const dataMarker = "LOG REFERENCE DATA"

var (
	deviceRe      = regexp.MustCompile(`Device (\w+)`)
	modelRe       = regexp.MustCompile(`Model ([^\n\r]+)`)
	cpuRe         = regexp.MustCompile(`CPU_Usage \(%\):\s*([0-9.]+)`)
	memoryRe      = regexp.MustCompile(`Memory_Usage \(%\):\s*([0-9.]+)`)
	batteryRe     = regexp.MustCompile(`Battery_Level \(%\):\s*([0-9.]+)`)
	latencyRe     = regexp.MustCompile(`Network_Latency \(ms\):\s*([0-9.]+)`)
	packetLossRe  = regexp.MustCompile(`Packet_Loss \(%\):\s*([0-9.]+)`)
	temperatureRe = regexp.MustCompile(`Temperature \(°C\):\s*([0-9.]+)`)
	uptimeRe      = regexp.MustCompile(`Uptime \(hrs\):\s*([0-9.]+)`)
	workloadRe    = regexp.MustCompile(`Workload_Intensity:\s*([0-9]+)`)
	errorsRe      = regexp.MustCompile(`Error_Count:\s*([0-9]+)`)
	failureRe     = regexp.MustCompile(`Failure_Type:\s*([0-9]+)`)
	resolutionRe  = regexp.MustCompile(`Max resolution:\s*([0-9.]+)`)
	pixelsRe      = regexp.MustCompile(`Effective pixels:\s*([0-9.]+)`)
	zoomWideRe    = regexp.MustCompile(`Zoom wide \(W\):\s*([0-9.]+)`)
	weightRe      = regexp.MustCompile(`Weight \(inc\. batteries\):\s*([0-9.]+)`)
	priceRe       = regexp.MustCompile(`Price:\s*([0-9.]+)`)
)

// Register adds the report diagnostics set to the registry.
func Register(r *tools.Registry) {
	for name, fn := range map[string]func(string) string{
		"diagnose_iot_device":       DiagnoseIoTDevice,
		"diagnose_camera_equipment": DiagnoseCameraEquipment,
		"analyze_root_cause":        AnalyzeRootCause,
		"assess_severity_level":     AssessSeverityLevel,
		"generate_remediation_plan": GenerateRemediationPlan,
	} {
		fn := fn
		r.MustRegister(&tools.Tool{
			Name:        name,
			Description: descriptions[name],
			Tags:        []string{"diagnosis"},
			Execute: func(_ context.Context, args map[string]any) (string, error) {
				return fn(tools.StringArg(args, "report")), nil
			},
			Schema: tools.Schema{
				Required: []string{"report"},
				Properties: map[string]tools.Property{
					"report": {Type: "string", Description: "Full diagnostic report from the analysis stage"},
				},
			},
		})
	}
}

var descriptions = map[string]string{
	"diagnose_iot_device":       "Diagnose IoT device issues from a diagnostic report's performance, health, network and operational data.",
	"diagnose_camera_equipment": "Diagnose camera equipment from a report's technical specifications and pricing data.",
	"analyze_root_cause":        "Extract likely root causes directly from a report's reference data.",
	"assess_severity_level":     "Score the report's metrics and emit a labelled risk assessment.",
	"generate_remediation_plan": "Derive immediate and preventive remediation actions from a report.",
}

// dataSection returns the text after the LOG REFERENCE DATA marker, or ""
// when the report carries no such section.
func dataSection(report string) string {
	if _, after, found := strings.Cut(report, dataMarker+":"); found {
		return after
	}
	return ""
}

func matchFloat(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	return f, err == nil
}

func matchInt(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

// DiagnoseIoTDevice analyzes an IoT diagnostic report's extracted metrics
// and grades the device.
func DiagnoseIoTDevice(report string) string {
	deviceID := "UNKNOWN"
	if m := deviceRe.FindStringSubmatch(report); m != nil {
		deviceID = m[1]
	}

	section := dataSection(report)
	var critical, warnings, analysis []string

	if cpu, ok := matchFloat(cpuRe, section); ok {
		switch {
		case cpu > 90:
			critical = append(critical, fmt.Sprintf("CRITICAL_CPU_UTILIZATION(%g%%)", cpu))
		case cpu > 80:
			warnings = append(warnings, fmt.Sprintf("HIGH_CPU_UTILIZATION(%g%%)", cpu))
		case cpu > 60:
			analysis = append(analysis, fmt.Sprintf("ELEVATED_CPU(%g%%)", cpu))
		default:
			analysis = append(analysis, fmt.Sprintf("CPU_NORMAL(%g%%)", cpu))
		}
	}

	if memory, ok := matchFloat(memoryRe, section); ok {
		switch {
		case memory > 95:
			critical = append(critical, fmt.Sprintf("CRITICAL_MEMORY_EXHAUSTION(%g%%)", memory))
		case memory > 85:
			warnings = append(warnings, fmt.Sprintf("HIGH_MEMORY_USAGE(%g%%)", memory))
		default:
			analysis = append(analysis, fmt.Sprintf("MEMORY_ACCEPTABLE(%g%%)", memory))
		}
	}

	if latency, ok := matchFloat(latencyRe, section); ok {
		switch {
		case latency > 500:
			critical = append(critical, fmt.Sprintf("CRITICAL_LATENCY(%gms)", latency))
		case latency > 200:
			warnings = append(warnings, fmt.Sprintf("HIGH_LATENCY(%gms)", latency))
		case latency > 100:
			analysis = append(analysis, fmt.Sprintf("ELEVATED_LATENCY(%gms)", latency))
		default:
			analysis = append(analysis, fmt.Sprintf("LATENCY_NORMAL(%gms)", latency))
		}
	}

	if errs, ok := matchInt(errorsRe, section); ok {
		switch {
		case errs > 10:
			critical = append(critical, fmt.Sprintf("CRITICAL_ERROR_RATE(%d)", errs))
		case errs > 5:
			warnings = append(warnings, fmt.Sprintf("HIGH_ERROR_RATE(%d)", errs))
		case errs > 0:
			analysis = append(analysis, fmt.Sprintf("MODERATE_ERRORS(%d)", errs))
		default:
			analysis = append(analysis, "ERROR_FREE_OPERATION")
		}
	}

	severity := "LOW"
	switch {
	case len(critical) > 0:
		severity = "CRITICAL"
	case len(warnings) > 2:
		severity = "HIGH"
	case len(warnings) > 0:
		severity = "MEDIUM"
	}

	diagnosis := fmt.Sprintf("IoT DEVICE DIAGNOSIS - %s: %s SEVERITY", deviceID, severity)
	if len(critical) > 0 {
		diagnosis += " | CRITICAL: " + strings.Join(critical, " | ")
	}
	if len(warnings) > 0 {
		diagnosis += " | WARNINGS: " + strings.Join(warnings, " | ")
	}
	if len(analysis) > 0 {
		diagnosis += " | ANALYSIS: " + strings.Join(analysis, " | ")
	}
	return diagnosis
}

// DiagnoseCameraEquipment analyzes a camera spec report's extracted
// specifications and grades the equipment.
func DiagnoseCameraEquipment(report string) string {
	model := "UNKNOWN"
	if m := modelRe.FindStringSubmatch(report); m != nil {
		model = strings.TrimSpace(m[1])
	}

	section := dataSection(report)
	var quality, technical []string

	if resolution, ok := matchFloat(resolutionRe, section); ok {
		switch {
		case resolution < 800:
			quality = append(quality, fmt.Sprintf("LOW_RESOLUTION_SENSOR(%g)", resolution))
		case resolution < 1200:
			technical = append(technical, fmt.Sprintf("ADEQUATE_RESOLUTION(%g)", resolution))
		default:
			technical = append(technical, fmt.Sprintf("HIGH_RESOLUTION(%g)", resolution))
		}
	}

	if pixels, ok := matchFloat(pixelsRe, section); ok {
		switch {
		case pixels < 1.0:
			quality = append(quality, fmt.Sprintf("INADEQUATE_PIXEL_COUNT(%gMP)", pixels))
		case pixels < 2.0:
			technical = append(technical, fmt.Sprintf("BASIC_SENSOR(%gMP)", pixels))
		default:
			technical = append(technical, fmt.Sprintf("DECENT_SENSOR(%gMP)", pixels))
		}
	}

	if weight, ok := matchFloat(weightRe, section); ok {
		switch {
		case weight > 600:
			quality = append(quality, fmt.Sprintf("HEAVY_WEIGHT(%gg)", weight))
		case weight > 400:
			technical = append(technical, fmt.Sprintf("MODERATE_WEIGHT(%gg)", weight))
		default:
			technical = append(technical, fmt.Sprintf("LIGHTWEIGHT(%gg)", weight))
		}
	}

	severity := "LOW"
	if len(quality) > 0 {
		severity = "MEDIUM"
	}

	diagnosis := fmt.Sprintf("CAMERA DIAGNOSIS - %s: %s SEVERITY", model, severity)
	if len(quality) > 0 {
		diagnosis += " | QUALITY_ISSUES: " + strings.Join(quality, " | ")
	}
	if len(technical) > 0 {
		diagnosis += " | TECHNICAL: " + strings.Join(technical, " | ")
	}
	return diagnosis
}

// AnalyzeRootCause extracts likely root causes directly from the report's
// reference data, independent of other tool output.
func AnalyzeRootCause(report string) string {
	section := dataSection(report)
	var causes []string

	switch {
	case strings.Contains(section, "Device_ID:"):
		if cpu, ok := matchFloat(cpuRe, section); ok {
			if cpu > 80 {
				causes = append(causes, fmt.Sprintf("CRITICAL_CPU_OVERLOAD - %g%% utilization", cpu))
			} else if cpu > 60 {
				causes = append(causes, fmt.Sprintf("HIGH_CPU_USAGE - %g%% resource pressure", cpu))
			}
		}
		if memory, ok := matchFloat(memoryRe, section); ok && memory > 85 {
			causes = append(causes, fmt.Sprintf("MEMORY_EXHAUSTION - %g%% usage critical", memory))
		}
		if latency, ok := matchFloat(latencyRe, section); ok && latency > 150 {
			causes = append(causes, fmt.Sprintf("NETWORK_LATENCY_ISSUE - %gms exceeds threshold", latency))
		}
		if errs, ok := matchInt(errorsRe, section); ok && errs > 2 {
			causes = append(causes, fmt.Sprintf("OPERATIONAL_ERRORS - %d errors detected", errs))
		}
	case strings.Contains(section, "Model:"):
		if resolution, ok := matchFloat(resolutionRe, section); ok && resolution < 800 {
			causes = append(causes, fmt.Sprintf("LOW_RESOLUTION - %g below standards", resolution))
		}
		if pixels, ok := matchFloat(pixelsRe, section); ok && pixels < 1.0 {
			causes = append(causes, fmt.Sprintf("INADEQUATE_SENSOR - %gMP insufficient", pixels))
		}
	}

	if len(causes) == 0 {
		causes = append(causes, "NO_CRITICAL_ISSUES_DETECTED - Metrics within acceptable ranges")
	}
	return "ROOT_CAUSE_ANALYSIS: " + strings.Join(causes, " | ")
}

// GenerateRemediationPlan derives immediate and preventive actions directly
// from the report's reference data.
func GenerateRemediationPlan(report string) string {
	section := dataSection(report)
	var immediate, preventive []string

	switch {
	case strings.Contains(section, "Device_ID:"):
		if cpu, ok := matchFloat(cpuRe, section); ok {
			if cpu > 80 {
				immediate = append(immediate, "Terminate non-essential processes immediately")
				preventive = append(preventive, "Implement CPU usage monitoring")
			} else if cpu > 60 {
				immediate = append(immediate, "Review and optimize running processes")
			}
		}
		if memory, ok := matchFloat(memoryRe, section); ok && memory > 85 {
			immediate = append(immediate, "Clear memory cache and restart services")
			preventive = append(preventive, "Implement automatic memory cleanup")
		}
		if latency, ok := matchFloat(latencyRe, section); ok && latency > 150 {
			immediate = append(immediate, "Check network connectivity")
			preventive = append(preventive, "Implement network monitoring")
		}
	case strings.Contains(section, "Model:"):
		immediate = append(immediate, "Update firmware if available")
		preventive = append(preventive, "Consider hardware upgrade planning")
	}

	plan := "REMEDIATION_PLAN:"
	if len(immediate) > 0 {
		plan += " IMMEDIATE: " + strings.Join(immediate, " | ")
	}
	if len(preventive) > 0 {
		plan += " PREVENTIVE: " + strings.Join(preventive, " | ")
	}
	return plan
}

// AssessSeverityLevel scores the report's metrics and emits the labelled
// risk marker the downstream classifier treats as authoritative.
func AssessSeverityLevel(report string) string {
	section := dataSection(report)
	var factors []string
	score := 0

	switch {
	case strings.Contains(section, "Device_ID:"):
		if cpu, ok := matchFloat(cpuRe, section); ok {
			switch {
			case cpu > 90:
				factors = append(factors, fmt.Sprintf("CRITICAL_CPU(%g%%)", cpu))
				score += 4
			case cpu > 80:
				factors = append(factors, fmt.Sprintf("HIGH_CPU(%g%%)", cpu))
				score += 3
			case cpu > 60:
				factors = append(factors, fmt.Sprintf("MEDIUM_CPU(%g%%)", cpu))
				score += 2
			}
		}
		if memory, ok := matchFloat(memoryRe, section); ok {
			switch {
			case memory > 90:
				factors = append(factors, fmt.Sprintf("CRITICAL_MEMORY(%g%%)", memory))
				score += 4
			case memory > 85:
				factors = append(factors, fmt.Sprintf("HIGH_MEMORY(%g%%)", memory))
				score += 3
			}
		}
		if latency, ok := matchFloat(latencyRe, section); ok {
			switch {
			case latency > 300:
				factors = append(factors, fmt.Sprintf("CRITICAL_LATENCY(%gms)", latency))
				score += 4
			case latency > 200:
				factors = append(factors, fmt.Sprintf("HIGH_LATENCY(%gms)", latency))
				score += 3
			case latency > 150:
				factors = append(factors, fmt.Sprintf("MEDIUM_LATENCY(%gms)", latency))
				score += 2
			}
		}
		if errs, ok := matchInt(errorsRe, section); ok {
			switch {
			case errs > 5:
				factors = append(factors, fmt.Sprintf("CRITICAL_ERRORS(%d)", errs))
				score += 4
			case errs > 3:
				factors = append(factors, fmt.Sprintf("HIGH_ERRORS(%d)", errs))
				score += 3
			case errs > 1:
				factors = append(factors, fmt.Sprintf("MEDIUM_ERRORS(%d)", errs))
				score += 2
			}
		}
	case strings.Contains(section, "Model:"):
		factors = append(factors, "CAMERA_ASSESSMENT")
		score++
	}

	level := "LOW"
	switch {
	case score >= 12:
		level = "CRITICAL"
	case score >= 8:
		level = "HIGH"
	case score >= 4:
		level = "MEDIUM"
	}

	factorText := "NO_CRITICAL_FACTORS"
	if len(factors) > 0 {
		factorText = strings.Join(factors, " | ")
	}
	return fmt.Sprintf("RISK ASSESSMENT: %s | FACTORS: %s | SCORE: %d", level, factorText, score)
}
