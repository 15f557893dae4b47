// Package costs estimates the model usage cost of a session.
package costs

import (
	"os"
	"strconv"
)

// Rates are prices in cents per unit. Defaults follow 2026 list prices and
// can be overridden via environment variables.
type Rates struct {
	STTCentsPerMinute   float64
	LLMInputCentsPer1K  float64
	LLMOutputCentsPer1K float64
}

// RatesFromEnv returns the rates for the given STT provider.
func RatesFromEnv(sttProvider string) Rates {
	// Whisper: $0.006/min = 0.6 cents/min
	sttDefault := 0.6
	if sttProvider == "deepgram" {
		// Deepgram Nova: $0.0077/min = 0.77 cents/min
		sttDefault = 0.77
	}
	return Rates{
		STTCentsPerMinute: getEnvFloat("COST_STT_CENTS_PER_MIN", sttDefault),
		// GPT-4o-mini: $0.15/1M input = 0.015 cents/1K tokens
		LLMInputCentsPer1K: getEnvFloat("COST_LLM_INPUT_CENTS_PER_1K", 0.015),
		// GPT-4o-mini: $0.60/1M output = 0.06 cents/1K tokens
		LLMOutputCentsPer1K: getEnvFloat("COST_LLM_OUTPUT_CENTS_PER_1K", 0.06),
	}
}

// SessionMetrics contains the raw usage of a session.
type SessionMetrics struct {
	AudioMs      int64 // Audio sent to STT across all parts
	PromptChars  int   // Characters sent to the LLM across all summaries
	SummaryChars int   // Characters received from the LLM
}

// SessionCosts contains the estimated costs of a session in cents.
type SessionCosts struct {
	LLMInputTokens  int `json:"llmInputTokens"`
	LLMOutputTokens int `json:"llmOutputTokens"`
	STTCostCents    int `json:"sttCostCents"`
	LLMCostCents    int `json:"llmCostCents"`
	TotalCostCents  int `json:"totalCostCents"`
}

// EstimateTokens approximates the token count of English text at four
// characters per token, rounding up.
func EstimateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	return (chars + 3) / 4
}

// Estimate computes the costs for a session based on usage metrics.
func (r Rates) Estimate(m SessionMetrics) SessionCosts {
	sttMinutes := float64(m.AudioMs) / 60000.0
	sttCents := sttMinutes * r.STTCentsPerMinute

	inTokens := EstimateTokens(m.PromptChars)
	outTokens := EstimateTokens(m.SummaryChars)
	llmCents := (float64(inTokens)/1000.0)*r.LLMInputCentsPer1K +
		(float64(outTokens)/1000.0)*r.LLMOutputCentsPer1K

	c := SessionCosts{
		LLMInputTokens:  inTokens,
		LLMOutputTokens: outTokens,
		STTCostCents:    roundToInt(sttCents),
		LLMCostCents:    roundToInt(llmCents),
	}
	c.TotalCostCents = c.STTCostCents + c.LLMCostCents
	return c
}

// roundToInt rounds a float to the nearest integer.
func roundToInt(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

// getEnvFloat returns an environment variable as float64, or the default if not set.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
