// Package remediation provides the device action tools registered with the
// remediation stage. Actions are simulated: no real device is contacted, and
// restart outcomes are derived from the device id so a given device behaves
// the same across runs.
package remediation

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"fleetmedic/internal/tools"
)

// Register adds the device action set to the registry.
func Register(r *tools.Registry) {
	r.MustRegister(restartIoTTool())
	r.MustRegister(adjustIoTSettingsTool())
	r.MustRegister(calibrateSensorsTool())
	r.MustRegister(restartCameraTool())
	r.MustRegister(adjustBrightnessTool())
	r.MustRegister(adjustFocusTool())
}

// restartSucceeds maps a device id onto a stable simulated outcome. Three of
// four hash buckets succeed.
func restartSucceeds(deviceID string) bool {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	return h.Sum32()%4 != 0
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

func marshal(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func restartIoTTool() *tools.Tool {
	return &tools.Tool{
		Name:        "restart_iot_system",
		Description: "Restart an IoT device system to resolve performance and connectivity issues.",
		Tags:        []string{"remediation", "iot"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			deviceID := tools.StringArg(args, "device_id")
			deviceType := tools.StringArg(args, "device_type")
			return RestartIoTSystem(deviceID, deviceType), nil
		},
		Schema: tools.Schema{
			Required: []string{"device_id", "device_type"},
			Properties: map[string]tools.Property{
				"device_id":   {Type: "string", Description: "Device identifier"},
				"device_type": {Type: "string", Description: "Type of IoT device"},
			},
		},
	}
}

// RestartIoTSystem simulates a device restart.
func RestartIoTSystem(deviceID, deviceType string) string {
	if restartSucceeds(deviceID) {
		return marshal(map[string]string{
			"status":             "iot_system_restarted",
			"device_id":          deviceID,
			"device_type":        deviceType,
			"timestamp":          now(),
			"action":             "System Restart",
			"message":            fmt.Sprintf("IoT device %s system restarted successfully. CPU and memory cleared, network reconnected.", deviceID),
			"result":             "SUCCESS",
			"estimated_downtime": "30 seconds",
		})
	}
	return marshal(map[string]string{
		"status":      "iot_restart_failed",
		"device_id":   deviceID,
		"device_type": deviceType,
		"timestamp":   now(),
		"action":      "System Restart",
		"message":     fmt.Sprintf("IoT device %s restart failed. Hardware intervention may be required.", deviceID),
		"result":      "FAILURE",
		"error_code":  "SYS_RESTART_TIMEOUT",
	})
}

func adjustIoTSettingsTool() *tools.Tool {
	return &tools.Tool{
		Name:        "adjust_iot_settings",
		Description: "Adjust configuration settings on an IoT device (sampling rate, thresholds, timeouts).",
		Tags:        []string{"remediation", "iot"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			deviceID := tools.StringArg(args, "device_id")
			settingType := tools.StringArg(args, "setting_type")
			newValue := tools.StringArg(args, "new_value")
			return AdjustIoTSettings(deviceID, settingType, newValue), nil
		},
		Schema: tools.Schema{
			Required: []string{"device_id", "setting_type", "new_value"},
			Properties: map[string]tools.Property{
				"device_id":    {Type: "string", Description: "Device identifier"},
				"setting_type": {Type: "string", Description: "Setting to adjust (sampling_rate, cpu_threshold, memory_threshold, network_timeout, sensor_calibration)"},
				"new_value":    {Type: "string", Description: "New value for the setting"},
			},
		},
	}
}

var settingUnits = map[string]string{
	"sampling_rate":      "Hz",
	"cpu_threshold":      "%",
	"memory_threshold":   "%",
	"network_timeout":    "ms",
	"sensor_calibration": "offset",
}

// AdjustIoTSettings simulates a configuration update.
func AdjustIoTSettings(deviceID, settingType, newValue string) string {
	unit, ok := settingUnits[settingType]
	if !ok {
		unit = "value"
	}
	return marshal(map[string]string{
		"status":         "iot_setting_adjusted",
		"device_id":      deviceID,
		"setting_type":   settingType,
		"new_value":      newValue,
		"unit":           unit,
		"timestamp":      now(),
		"action":         "Configuration Update",
		"message":        fmt.Sprintf("IoT device %s %s adjusted to %s %s", deviceID, settingType, newValue, unit),
		"result":         "SUCCESS",
		"previous_value": "auto-detected",
	})
}

func calibrateSensorsTool() *tools.Tool {
	return &tools.Tool{
		Name:        "calibrate_iot_sensors",
		Description: "Calibrate IoT device sensors to improve data accuracy.",
		Tags:        []string{"remediation", "iot"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			deviceID := tools.StringArg(args, "device_id")
			sensorTypes := tools.StringArg(args, "sensor_types")
			return CalibrateIoTSensors(deviceID, sensorTypes), nil
		},
		Schema: tools.Schema{
			Required: []string{"device_id", "sensor_types"},
			Properties: map[string]tools.Property{
				"device_id":    {Type: "string", Description: "Device identifier"},
				"sensor_types": {Type: "string", Description: "Comma-separated sensor types to calibrate"},
			},
		},
	}
}

// CalibrateIoTSensors simulates a calibration pass over each listed sensor.
// Offsets are derived from the device and sensor name so results are stable.
func CalibrateIoTSensors(deviceID, sensorTypes string) string {
	sensors := strings.Split(sensorTypes, ",")
	results := make([]map[string]any, 0, len(sensors))
	for _, sensor := range sensors {
		sensor = strings.TrimSpace(sensor)
		h := fnv.New32a()
		_, _ = h.Write([]byte(deviceID + ":" + sensor))
		// Offset in [-2.5, 2.5), accuracy improvement in [5, 15).
		offset := float64(h.Sum32()%500)/100.0 - 2.5
		improvement := 5.0 + float64(h.Sum32()%100)/10.0
		results = append(results, map[string]any{
			"sensor_type":          sensor,
			"calibration_offset":   offset,
			"accuracy_improvement": fmt.Sprintf("%.1f%%", improvement),
			"status":               "calibrated",
		})
	}
	return marshal(map[string]any{
		"status":             "iot_sensors_calibrated",
		"device_id":          deviceID,
		"sensors_calibrated": results,
		"timestamp":          now(),
		"action":             "Sensor Calibration",
		"message":            fmt.Sprintf("IoT device %s sensors calibrated: %d sensors optimized", deviceID, len(sensors)),
		"result":             "SUCCESS",
		"total_sensors":      len(sensors),
	})
}

func restartCameraTool() *tools.Tool {
	return &tools.Tool{
		Name:        "restart_camera_system",
		Description: "Restart a camera system to resolve imaging and performance issues.",
		Tags:        []string{"remediation", "camera"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			cameraID := tools.StringArg(args, "camera_id")
			model := tools.StringArg(args, "camera_model")
			if model == "" {
				model = "Camera"
			}
			return RestartCameraSystem(cameraID, model), nil
		},
		Schema: tools.Schema{
			Required: []string{"camera_id"},
			Properties: map[string]tools.Property{
				"camera_id":    {Type: "string", Description: "Camera identifier"},
				"camera_model": {Type: "string", Description: "Camera model name"},
			},
		},
	}
}

// RestartCameraSystem simulates a camera restart.
func RestartCameraSystem(cameraID, cameraModel string) string {
	if restartSucceeds(cameraID) {
		return marshal(map[string]any{
			"status":             "camera_system_restarted",
			"camera_id":          cameraID,
			"camera_model":       cameraModel,
			"timestamp":          now(),
			"action":             "Camera System Restart",
			"message":            fmt.Sprintf("Camera %s system restarted successfully. Image processor cleared, autofocus reset.", cameraID),
			"result":             "SUCCESS",
			"estimated_downtime": "45 seconds",
			"systems_reset":      []string{"image_processor", "autofocus", "exposure_control"},
		})
	}
	return marshal(map[string]string{
		"status":       "camera_restart_failed",
		"camera_id":    cameraID,
		"camera_model": cameraModel,
		"timestamp":    now(),
		"action":       "Camera System Restart",
		"message":      fmt.Sprintf("Camera %s restart failed. Lens mechanism may be stuck.", cameraID),
		"result":       "FAILURE",
		"error_code":   "CAM_RESTART_BLOCKED",
	})
}

func adjustBrightnessTool() *tools.Tool {
	return &tools.Tool{
		Name:        "adjust_camera_brightness",
		Description: "Adjust camera brightness and exposure settings for optimal imaging.",
		Tags:        []string{"remediation", "camera"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			cameraID := tools.StringArg(args, "camera_id")
			level := tools.StringArg(args, "brightness_level")
			autoAdjust := true
			if _, present := args["auto_adjust"]; present {
				autoAdjust = tools.BoolArg(args, "auto_adjust")
			}
			return AdjustCameraBrightness(cameraID, level, autoAdjust), nil
		},
		Schema: tools.Schema{
			Required: []string{"camera_id", "brightness_level"},
			Properties: map[string]tools.Property{
				"camera_id":        {Type: "string", Description: "Camera identifier"},
				"brightness_level": {Type: "string", Description: "Target level: low, medium, high or auto"},
				"auto_adjust":      {Type: "boolean", Description: "Enable automatic exposure adjustment"},
			},
		},
	}
}

type exposureSettings struct {
	iso      string
	exposure string
	aperture string
}

var brightnessMapping = map[string]exposureSettings{
	"low":    {iso: "100", exposure: "1/60", aperture: "f/8"},
	"medium": {iso: "400", exposure: "1/30", aperture: "f/5.6"},
	"high":   {iso: "800", exposure: "1/15", aperture: "f/4"},
	"auto":   {iso: "auto", exposure: "auto", aperture: "auto"},
}

// AdjustCameraBrightness simulates an exposure adjustment.
func AdjustCameraBrightness(cameraID, brightnessLevel string, autoAdjust bool) string {
	settings, ok := brightnessMapping[strings.ToLower(brightnessLevel)]
	if !ok {
		settings = brightnessMapping["medium"]
	}
	return marshal(map[string]any{
		"status":              "camera_brightness_adjusted",
		"camera_id":           cameraID,
		"brightness_level":    brightnessLevel,
		"iso_setting":         settings.iso,
		"exposure_time":       settings.exposure,
		"aperture":            settings.aperture,
		"auto_adjust_enabled": autoAdjust,
		"timestamp":           now(),
		"action":              "Brightness Adjustment",
		"message":             fmt.Sprintf("Camera %s brightness adjusted to %s level with optimized exposure settings", cameraID, brightnessLevel),
		"result":              "SUCCESS",
	})
}

func adjustFocusTool() *tools.Tool {
	return &tools.Tool{
		Name:        "adjust_camera_focus",
		Description: "Adjust camera focus settings to improve image sharpness.",
		Tags:        []string{"remediation", "camera"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			cameraID := tools.StringArg(args, "camera_id")
			mode := tools.StringArg(args, "focus_mode")
			if mode == "" {
				mode = "auto"
			}
			distance := tools.StringArg(args, "focus_distance")
			if distance == "" {
				distance = "infinity"
			}
			return AdjustCameraFocus(cameraID, mode, distance), nil
		},
		Schema: tools.Schema{
			Required: []string{"camera_id"},
			Properties: map[string]tools.Property{
				"camera_id":      {Type: "string", Description: "Camera identifier"},
				"focus_mode":     {Type: "string", Description: "Focus mode: auto, manual, macro or sport"},
				"focus_distance": {Type: "string", Description: "Focus distance hint"},
			},
		},
	}
}

type focusProfile struct {
	method   string
	accuracy string
	speed    string
}

var focusProfiles = map[string]focusProfile{
	"auto":   {method: "continuous_af", accuracy: "95%", speed: "fast"},
	"manual": {method: "manual_ring", accuracy: "99%", speed: "manual"},
	"macro":  {method: "close_focus", accuracy: "98%", speed: "slow"},
	"sport":  {method: "predictive_af", accuracy: "92%", speed: "very_fast"},
}

// AdjustCameraFocus simulates a focus adjustment.
func AdjustCameraFocus(cameraID, focusMode, focusDistance string) string {
	profile, ok := focusProfiles[strings.ToLower(focusMode)]
	if !ok {
		profile = focusProfiles["auto"]
	}
	return marshal(map[string]string{
		"status":         "camera_focus_adjusted",
		"camera_id":      cameraID,
		"focus_mode":     focusMode,
		"focus_distance": focusDistance,
		"focus_method":   profile.method,
		"focus_accuracy": profile.accuracy,
		"focus_speed":    profile.speed,
		"timestamp":      now(),
		"action":         "Focus Adjustment",
		"message":        fmt.Sprintf("Camera %s focus adjusted to %s mode with %s accuracy", cameraID, focusMode, profile.accuracy),
		"result":         "SUCCESS",
	})
}
