// Package iot provides the IoT telemetry analyzers registered with the
// analysis stage.
package iot

import (
	"context"
	"fmt"
	"strings"

	"fleetmedic/internal/tools"
)

// Register adds the IoT analyzer set to the registry.
func Register(r *tools.Registry) {
	r.MustRegister(deviceMetricsTool())
	r.MustRegister(deviceHealthTool())
	r.MustRegister(networkPerformanceTool())
	r.MustRegister(operationalMetricsTool())
}

func deviceMetricsTool() *tools.Tool {
	return &tools.Tool{
		Name:        "analyze_device_metrics",
		Description: "Analyze basic device metrics (CPU and memory usage) for anomalies.",
		Tags:        []string{"iot", "performance"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			deviceID := tools.StringArg(args, "device_id")
			cpu := tools.FloatArg(args, "cpu_usage")
			memory := tools.FloatArg(args, "memory_usage")
			return AnalyzeDeviceMetrics(deviceID, cpu, memory), nil
		},
		Schema: tools.Schema{
			Required: []string{"device_id", "cpu_usage", "memory_usage"},
			Properties: map[string]tools.Property{
				"device_id":    {Type: "string", Description: "Device identifier"},
				"cpu_usage":    {Type: "number", Description: "CPU usage percentage (0-100)"},
				"memory_usage": {Type: "number", Description: "Memory usage percentage (0-100)"},
			},
		},
	}
}

func deviceHealthTool() *tools.Tool {
	return &tools.Tool{
		Name:        "check_device_health",
		Description: "Check overall device health from temperature and battery level.",
		Tags:        []string{"iot", "health"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			deviceID := tools.StringArg(args, "device_id")
			temp := tools.FloatArg(args, "temperature")
			battery := tools.FloatArg(args, "battery_level")
			return CheckDeviceHealth(deviceID, temp, battery), nil
		},
		Schema: tools.Schema{
			Required: []string{"device_id", "temperature", "battery_level"},
			Properties: map[string]tools.Property{
				"device_id":     {Type: "string", Description: "Device identifier"},
				"temperature":   {Type: "number", Description: "Device temperature in Celsius"},
				"battery_level": {Type: "number", Description: "Battery level percentage (0-100)"},
			},
		},
	}
}

func networkPerformanceTool() *tools.Tool {
	return &tools.Tool{
		Name:        "analyze_network_performance",
		Description: "Analyze network latency and packet loss for connectivity issues.",
		Tags:        []string{"iot", "network"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			deviceID := tools.StringArg(args, "device_id")
			latency := tools.FloatArg(args, "latency")
			packetLoss := tools.FloatArg(args, "packet_loss")
			return AnalyzeNetworkPerformance(deviceID, latency, packetLoss), nil
		},
		Schema: tools.Schema{
			Required: []string{"device_id", "latency", "packet_loss"},
			Properties: map[string]tools.Property{
				"device_id":   {Type: "string", Description: "Device identifier"},
				"latency":     {Type: "number", Description: "Network latency in milliseconds"},
				"packet_loss": {Type: "number", Description: "Packet loss percentage (0-100)"},
			},
		},
	}
}

func operationalMetricsTool() *tools.Tool {
	return &tools.Tool{
		Name:        "analyze_operational_metrics",
		Description: "Analyze uptime, workload, error count and failure type for stability issues.",
		Tags:        []string{"iot", "operations"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			deviceID := tools.StringArg(args, "device_id")
			uptime := tools.FloatArg(args, "uptime_hrs")
			workload := tools.IntArg(args, "workload_intensity")
			errCount := tools.IntArg(args, "error_count")
			failureType := tools.IntArg(args, "failure_type")
			return AnalyzeOperationalMetrics(deviceID, uptime, workload, errCount, failureType), nil
		},
		Schema: tools.Schema{
			Required: []string{"device_id", "uptime_hrs", "workload_intensity", "error_count", "failure_type"},
			Properties: map[string]tools.Property{
				"device_id":          {Type: "string", Description: "Device identifier"},
				"uptime_hrs":         {Type: "number", Description: "Device uptime in hours"},
				"workload_intensity": {Type: "integer", Description: "Processing workload level (numeric scale)"},
				"error_count":        {Type: "integer", Description: "Number of errors detected"},
				"failure_type":       {Type: "integer", Description: "Failure category code"},
			},
		},
	}
}

// AnalyzeDeviceMetrics flags CPU or memory pressure above the 60% baseline,
// escalating above 90%.
func AnalyzeDeviceMetrics(deviceID string, cpuUsage, memoryUsage float64) string {
	var issues []string
	if cpuUsage > 60 {
		issues = append(issues, fmt.Sprintf("HIGH CPU usage: %g%%", cpuUsage))
	}
	if memoryUsage > 60 {
		issues = append(issues, fmt.Sprintf("HIGH memory usage: %g%%", memoryUsage))
	}

	if len(issues) > 0 {
		severity := "MEDIUM"
		if cpuUsage > 90 || memoryUsage > 90 {
			severity = "HIGH"
		}
		return fmt.Sprintf("Device %s: %s severity. Issues: %s", deviceID, severity, strings.Join(issues, ", "))
	}
	return fmt.Sprintf("Device %s: LOW severity. Metrics within normal range.", deviceID)
}

// CheckDeviceHealth flags overheating above 60C and low battery under 20%,
// escalating to CRITICAL above 70C or under 10%.
func CheckDeviceHealth(deviceID string, temperature, batteryLevel float64) string {
	var issues []string
	if temperature > 60 {
		issues = append(issues, fmt.Sprintf("HIGH temperature: %g°C", temperature))
	}
	if batteryLevel < 20 {
		issues = append(issues, fmt.Sprintf("LOW battery: %g%%", batteryLevel))
	}

	if len(issues) > 0 {
		severity := "MEDIUM"
		if temperature > 70 || batteryLevel < 10 {
			severity = "CRITICAL"
		}
		return fmt.Sprintf("Device %s: %s health issues. %s", deviceID, severity, strings.Join(issues, ", "))
	}
	return fmt.Sprintf("Device %s: GOOD health status.", deviceID)
}

// AnalyzeNetworkPerformance flags latency above 150ms and packet loss above
// 1%, escalating to HIGH past 500ms or 5%.
func AnalyzeNetworkPerformance(deviceID string, latency, packetLoss float64) string {
	var issues []string

	switch {
	case latency > 300:
		issues = append(issues, fmt.Sprintf("HIGH latency: %gms", latency))
	case latency > 150:
		issues = append(issues, fmt.Sprintf("ELEVATED latency: %gms", latency))
	}

	switch {
	case packetLoss > 3:
		issues = append(issues, fmt.Sprintf("HIGH packet loss: %g%%", packetLoss))
	case packetLoss > 1:
		issues = append(issues, fmt.Sprintf("ELEVATED packet loss: %g%%", packetLoss))
	}

	if len(issues) > 0 {
		severity := "MEDIUM"
		if latency > 500 || packetLoss > 5 {
			severity = "HIGH"
		}
		return fmt.Sprintf("Device %s: %s network issues. %s", deviceID, severity, strings.Join(issues, ", "))
	}
	return fmt.Sprintf("Device %s: GOOD network performance.", deviceID)
}

// AnalyzeOperationalMetrics scores uptime, workload intensity, error counts
// and failure type against stability thresholds.
func AnalyzeOperationalMetrics(deviceID string, uptimeHrs float64, workloadIntensity, errorCount, failureType int) string {
	var issues, riskFactors []string

	if uptimeHrs < 24 {
		issues = append(issues, fmt.Sprintf("SHORT uptime: %.1f hours (recent restart)", uptimeHrs))
	} else if uptimeHrs > 720 {
		riskFactors = append(riskFactors, fmt.Sprintf("EXTENDED uptime: %.1f hours (may need maintenance)", uptimeHrs))
	}

	switch {
	case workloadIntensity >= 8:
		issues = append(issues, fmt.Sprintf("EXTREME workload: intensity %d", workloadIntensity))
	case workloadIntensity >= 6:
		issues = append(issues, fmt.Sprintf("HIGH workload: intensity %d", workloadIntensity))
	case workloadIntensity >= 4:
		riskFactors = append(riskFactors, fmt.Sprintf("MODERATE workload: intensity %d", workloadIntensity))
	}

	switch {
	case errorCount > 20:
		issues = append(issues, fmt.Sprintf("CRITICAL error rate: %d errors", errorCount))
	case errorCount > 10:
		issues = append(issues, fmt.Sprintf("HIGH error rate: %d errors", errorCount))
	case errorCount > 5:
		riskFactors = append(riskFactors, fmt.Sprintf("ELEVATED error rate: %d errors", errorCount))
	case errorCount > 0:
		riskFactors = append(riskFactors, fmt.Sprintf("Some errors detected: %d errors", errorCount))
	}

	switch {
	case failureType >= 8:
		issues = append(issues, fmt.Sprintf("SEVERE failure type: %d", failureType))
	case failureType >= 5:
		issues = append(issues, fmt.Sprintf("SIGNIFICANT failure type: %d", failureType))
	case failureType >= 3:
		riskFactors = append(riskFactors, fmt.Sprintf("Moderate failure type: %d", failureType))
	case failureType > 0:
		riskFactors = append(riskFactors, fmt.Sprintf("Minor failure type: %d", failureType))
	}

	switch {
	case len(issues) > 0:
		severity := "HIGH"
		if errorCount > 20 || workloadIntensity >= 8 || failureType >= 8 {
			severity = "CRITICAL"
		}
		result := fmt.Sprintf("Device %s: %s operational issues. %s", deviceID, severity, strings.Join(issues, ", "))
		if len(riskFactors) > 0 {
			result += " Additional concerns: " + strings.Join(riskFactors, ", ")
		}
		return result
	case len(riskFactors) > 0:
		return fmt.Sprintf("Device %s: MEDIUM operational concerns. %s", deviceID, strings.Join(riskFactors, ", "))
	default:
		return fmt.Sprintf("Device %s: GOOD operational status.", deviceID)
	}
}
