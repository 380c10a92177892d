// Package cost prices reasoning-engine executions and keeps an append-only
// per-process ledger of priced transactions.
//
// Token counts are estimated, not measured: the reasoning engine does not
// report exact counts to this layer, so both directions are approximated
// from character length.
package cost

import (
	"math"
	"strings"
)

// Tier holds per-1K-token USD rates for one model family.
type Tier struct {
	Name        string  `json:"name"`
	InputPer1K  float64 `json:"input_tokens_per_1k"`
	OutputPer1K float64 `json:"output_tokens_per_1k"`
}

// Pricing as of 2024. Update these rates as needed.
var (
	tierFlash = Tier{Name: "gemini-1.5-flash", InputPer1K: 0.000075, OutputPer1K: 0.0003}
	tierPro   = Tier{Name: "gemini-1.5-pro", InputPer1K: 0.00125, OutputPer1K: 0.005}
)

// ResolveTier matches a model name to a pricing tier. Unmatched models fall
// back to the flash tier.
func ResolveTier(modelName string) Tier {
	lower := strings.ToLower(modelName)
	switch {
	case strings.Contains(lower, "pro"):
		return tierPro
	case strings.Contains(lower, "flash"):
		return tierFlash
	default:
		return tierFlash
	}
}

// Breakdown is the priced result of one execution.
type Breakdown struct {
	ModelUsed     string  `json:"model_used"`
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	TotalTokens   int     `json:"total_tokens"`
	InputCostUSD  float64 `json:"input_cost_usd"`
	OutputCostUSD float64 `json:"output_cost_usd"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
	PricingRate   Tier    `json:"pricing_rate"`
}

// Calculate prices an execution. It is a pure function of
// (modelName, inputTokens, outputTokens); each cost term is rounded to six
// decimal places.
func Calculate(modelName string, inputTokens, outputTokens int) Breakdown {
	tier := ResolveTier(modelName)

	inputCost := round6(float64(inputTokens) / 1000 * tier.InputPer1K)
	outputCost := round6(float64(outputTokens) / 1000 * tier.OutputPer1K)

	return Breakdown{
		ModelUsed:     tier.Name,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		TotalTokens:   inputTokens + outputTokens,
		InputCostUSD:  inputCost,
		OutputCostUSD: outputCost,
		TotalCostUSD:  round6(inputCost + outputCost),
		PricingRate:   tier,
	}
}

// EstimateTokens approximates the token count of text, roughly four
// characters per token, never below one.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
