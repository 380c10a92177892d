// Package camera provides the camera spec analyzers registered with the
// analysis stage alongside the IoT set, so the reasoning engine can pick
// the right family once it detects the record schema.
package camera

import (
	"context"
	"fmt"
	"strings"

	"fleetmedic/internal/tools"
)

// Register adds the camera analyzer set to the registry.
func Register(r *tools.Registry) {
	r.MustRegister(coreSpecsTool())
	r.MustRegister(valueTool())
	r.MustRegister(portabilityTool())
}

func coreSpecsTool() *tools.Tool {
	return &tools.Tool{
		Name:        "analyze_camera_core_specs",
		Description: "Analyze core camera specifications (resolution, pixels, zoom range) for capability issues.",
		Tags:        []string{"camera", "specs"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			model := tools.StringArg(args, "model")
			maxRes := tools.FloatArg(args, "max_resolution")
			pixels := tools.FloatArg(args, "effective_pixels")
			zoomWide := tools.FloatArg(args, "zoom_wide")
			zoomTele := tools.FloatArg(args, "zoom_tele")
			return AnalyzeCoreSpecs(model, maxRes, pixels, zoomWide, zoomTele), nil
		},
		Schema: tools.Schema{
			Required: []string{"model", "max_resolution", "effective_pixels", "zoom_wide", "zoom_tele"},
			Properties: map[string]tools.Property{
				"model":            {Type: "string", Description: "Camera model name"},
				"max_resolution":   {Type: "number", Description: "Maximum image resolution"},
				"effective_pixels": {Type: "number", Description: "Effective megapixels"},
				"zoom_wide":        {Type: "number", Description: "Wide-end focal length equivalent (mm)"},
				"zoom_tele":        {Type: "number", Description: "Tele-end focal length equivalent (mm)"},
			},
		},
	}
}

func valueTool() *tools.Tool {
	return &tools.Tool{
		Name:        "assess_camera_value",
		Description: "Assess camera value from release year, price and effective pixels.",
		Tags:        []string{"camera", "value"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			model := tools.StringArg(args, "model")
			year := tools.IntArg(args, "release_year")
			price := tools.FloatArg(args, "price")
			pixels := tools.FloatArg(args, "effective_pixels")
			return AssessValue(model, year, price, pixels), nil
		},
		Schema: tools.Schema{
			Required: []string{"model", "release_year", "price", "effective_pixels"},
			Properties: map[string]tools.Property{
				"model":            {Type: "string", Description: "Camera model name"},
				"release_year":     {Type: "integer", Description: "Four digit release year"},
				"price":            {Type: "number", Description: "Price in dataset units"},
				"effective_pixels": {Type: "number", Description: "Effective megapixels"},
			},
		},
	}
}

func portabilityTool() *tools.Tool {
	return &tools.Tool{
		Name:        "evaluate_camera_portability",
		Description: "Evaluate portability from weight and optional dimensions.",
		Tags:        []string{"camera", "portability"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			model := tools.StringArg(args, "model")
			weight := tools.FloatArg(args, "weight_g")
			dims := tools.StringArg(args, "dimensions")
			return EvaluatePortability(model, weight, dims), nil
		},
		Schema: tools.Schema{
			Required: []string{"model", "weight_g"},
			Properties: map[string]tools.Property{
				"model":      {Type: "string", Description: "Camera model name"},
				"weight_g":   {Type: "number", Description: "Weight including batteries (grams)"},
				"dimensions": {Type: "string", Description: "Optional dimensions string"},
			},
		},
	}
}

// AnalyzeCoreSpecs checks sensor capability and zoom coverage.
func AnalyzeCoreSpecs(model string, maxResolution, effectivePixels, zoomWide, zoomTele float64) string {
	var findings []string

	if effectivePixels < 2.0 {
		findings = append(findings, fmt.Sprintf("Very low effective pixels: %gMP", effectivePixels))
	} else if effectivePixels < 6.0 {
		findings = append(findings, fmt.Sprintf("Low effective pixels: %gMP", effectivePixels))
	}

	if maxResolution < 1600 {
		findings = append(findings, fmt.Sprintf("Low max resolution: %g", maxResolution))
	}

	if zoomTele-zoomWide >= 200 {
		findings = append(findings, fmt.Sprintf("Large zoom range: %g-%gmm", zoomWide, zoomTele))
	} else if zoomTele-zoomWide <= 20 && zoomTele > 0 && zoomWide > 0 {
		findings = append(findings, fmt.Sprintf("Limited zoom range: %g-%gmm", zoomWide, zoomTele))
	}

	if len(findings) > 0 {
		return fmt.Sprintf("Model %s: SPEC considerations. %s", model, strings.Join(findings, ", "))
	}
	return fmt.Sprintf("Model %s: Specs look balanced for general use.", model)
}

// AssessValue compares generation, price and pixel count.
func AssessValue(model string, releaseYear int, price, effectivePixels float64) string {
	var concerns []string

	if releaseYear <= 2000 && price > 500 {
		concerns = append(concerns, "Very old generation with high price")
	} else if releaseYear <= 2005 && price > 1000 {
		concerns = append(concerns, "Old generation likely overpriced")
	}

	if effectivePixels < 3 && price > 300 {
		concerns = append(concerns, "Low megapixels for the price")
	}

	if len(concerns) > 0 {
		return fmt.Sprintf("Model %s: VALUE concerns. %s", model, strings.Join(concerns, ", "))
	}
	return fmt.Sprintf("Model %s: Value appears reasonable given year and specs.", model)
}

// EvaluatePortability grades the body weight and echoes dimensions when given.
func EvaluatePortability(model string, weightG float64, dimensions string) string {
	var notes []string

	switch {
	case weightG >= 800:
		notes = append(notes, fmt.Sprintf("Heavy body: %gg", weightG))
	case weightG >= 500:
		notes = append(notes, fmt.Sprintf("Moderate weight: %gg", weightG))
	case weightG > 0:
		notes = append(notes, fmt.Sprintf("Lightweight: %gg", weightG))
	default:
		notes = append(notes, "Weight not specified")
	}

	if dimensions != "" {
		notes = append(notes, "Dimensions: "+dimensions)
	}

	return fmt.Sprintf("Model %s: PORTABILITY assessment. %s", model, strings.Join(notes, ", "))
}
