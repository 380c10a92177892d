package iot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetmedic/internal/tools"
)

func TestRegister(t *testing.T) {
	r := tools.NewRegistry(nil)
	Register(r)

	assert.Equal(t, 4, r.Count())
	assert.Equal(t, []string{
		"analyze_device_metrics",
		"analyze_network_performance",
		"analyze_operational_metrics",
		"check_device_health",
	}, r.Names())
}

func TestAnalyzeDeviceMetrics(t *testing.T) {
	tcs := []struct {
		name   string
		cpu    float64
		memory float64
		want   string
	}{
		{"normal", 40, 50, "LOW severity"},
		{"elevated cpu", 75, 50, "MEDIUM severity"},
		{"extreme cpu", 95, 50, "HIGH severity"},
		{"extreme memory", 40, 92, "HIGH severity"},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := AnalyzeDeviceMetrics("DEV1", tc.cpu, tc.memory)
			assert.Contains(t, got, tc.want)
		})
	}
}

func TestCheckDeviceHealth(t *testing.T) {
	assert.Contains(t, CheckDeviceHealth("D", 45, 80), "GOOD health")
	assert.Contains(t, CheckDeviceHealth("D", 65, 80), "MEDIUM health issues")
	assert.Contains(t, CheckDeviceHealth("D", 75, 80), "CRITICAL health issues")
	assert.Contains(t, CheckDeviceHealth("D", 45, 5), "CRITICAL health issues")
}

func TestAnalyzeNetworkPerformance(t *testing.T) {
	assert.Contains(t, AnalyzeNetworkPerformance("D", 50, 0.5), "GOOD network")
	assert.Contains(t, AnalyzeNetworkPerformance("D", 200, 0.5), "MEDIUM network issues")
	assert.Contains(t, AnalyzeNetworkPerformance("D", 600, 0.5), "HIGH network issues")
	assert.Contains(t, AnalyzeNetworkPerformance("D", 50, 6), "HIGH network issues")
}

func TestAnalyzeOperationalMetrics(t *testing.T) {
	assert.Contains(t, AnalyzeOperationalMetrics("D", 100, 1, 0, 0), "GOOD operational status")
	assert.Contains(t, AnalyzeOperationalMetrics("D", 100, 4, 0, 0), "MEDIUM operational concerns")
	assert.Contains(t, AnalyzeOperationalMetrics("D", 100, 6, 0, 0), "HIGH operational issues")
	assert.Contains(t, AnalyzeOperationalMetrics("D", 100, 9, 0, 0), "CRITICAL operational issues")
	assert.Contains(t, AnalyzeOperationalMetrics("D", 100, 1, 25, 0), "CRITICAL operational issues")
	assert.Contains(t, AnalyzeOperationalMetrics("D", 10, 1, 0, 0), "SHORT uptime")
}

func TestToolExecutionCoercesArgs(t *testing.T) {
	r := tools.NewRegistry(nil)
	Register(r)

	// Function-call arguments decode numbers as float64 and sometimes
	// arrive as strings.
	res, err := r.Execute(context.Background(), "analyze_device_metrics", map[string]any{
		"device_id":    "DEV9",
		"cpu_usage":    "95.5",
		"memory_usage": float64(40),
	})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "HIGH severity")
	assert.Contains(t, res.Output, "DEV9")
}
