package cost

import "math"

// Price is USD per 1K tokens.
type Price struct {
	Input  float64
	Output float64
}

const fallbackModel = "gpt-3.5-turbo"

var modelPrices = map[string]Price{
	"gpt-3.5-turbo": {Input: 0.0015, Output: 0.002},
	"gpt-4":         {Input: 0.03, Output: 0.06},
	"gpt-4-turbo":   {Input: 0.01, Output: 0.03},
}

// PriceOf returns the price of model, unknown models are priced as
// gpt-3.5-turbo.
func PriceOf(model string) Price {
	if p, ok := modelPrices[model]; ok {
		return p
	}
	return modelPrices[fallbackModel]
}

// Breakdown is the cost of one call split by direction.
type Breakdown struct {
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	Total      float64 `json:"total"`
}

func Calculate(model string, tokensIn int64, tokensOut int64) Breakdown {
	p := PriceOf(model)
	in := round6(float64(tokensIn) / 1000 * p.Input)
	out := round6(float64(tokensOut) / 1000 * p.Output)
	return Breakdown{InputCost: in, OutputCost: out, Total: round6(in + out)}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
