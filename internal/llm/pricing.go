package llm

import (
	"fmt"
	"log/slog"

	"github.com/caardbot/caard/internal/types"
)

// Price is the per-token cost of one model, in USD.
type Price struct {
	Input  float64
	Output float64
}

// pricing is the static model price table. A model missing here is a
// configuration error: calls fail fast instead of silently charging $0.
var pricing = map[string]Price{
	"gemini-1.5-flash":   {Input: 0.0375 / 1_000_000, Output: 0.0150 / 1_000_000},
	"text-embedding-004": {Input: 0, Output: 0},
}

// PriceFor looks up the price entry for a model.
func PriceFor(model string) (Price, error) {
	p, ok := pricing[model]
	if !ok {
		return Price{}, fmt.Errorf("pricing not available for model: %s", model)
	}
	return p, nil
}

// LogUsage computes and logs the cost of one provider call. It returns
// an error when the model has no price entry.
func LogUsage(model string, usage types.Usage) error {
	price, err := PriceFor(model)
	if err != nil {
		return err
	}
	inputCost := float64(usage.PromptTokens) * price.Input
	outputCost := float64(usage.CompletionTokens) * price.Output
	slog.Info("token usage",
		"model", model,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"input_cost", inputCost,
		"output_cost", outputCost,
		"total_cost", inputCost+outputCost)
	return nil
}

// EstimateTokens estimates the token count of a text with a
// Unicode-aware heuristic: roughly four ASCII characters per token and
// one non-ASCII character per token. Used for embedding calls, whose
// providers do not report usage.
func EstimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}
