package llm

import "strings"

// Price is USD per million tokens.
type Price struct {
	Input  float64
	Output float64
}

var defaultPrice = Price{Input: 3.0, Output: 15.0}

var priceTable = map[string]Price{
	"claude-sonnet-4":   {Input: 3.0, Output: 15.0},
	"claude-3-7-sonnet": {Input: 3.0, Output: 15.0},
	"claude-3-5-sonnet": {Input: 3.0, Output: 15.0},
	"claude-opus-4":     {Input: 15.0, Output: 75.0},
	"claude-3-opus":     {Input: 15.0, Output: 75.0},
	"claude-haiku-4":    {Input: 1.0, Output: 5.0},
	"claude-3-5-haiku":  {Input: 0.8, Output: 4.0},
	"claude-3-haiku":    {Input: 0.25, Output: 1.25},
	"gpt-4o-mini":       {Input: 0.15, Output: 0.6},
	"gpt-4o":            {Input: 2.5, Output: 10.0},
	"gpt-4-turbo":       {Input: 10.0, Output: 30.0},
	"gpt-3.5-turbo":     {Input: 0.5, Output: 1.5},
}

// PriceFor returns the price of the longest table prefix matching model. Unknown models are
// billed at Sonnet rates.
func PriceFor(model string) Price {
	best := ""
	for prefix := range priceTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return defaultPrice
	}
	return priceTable[best]
}

func Cost(model string, usage Usage) float64 {
	price := PriceFor(model)
	return float64(usage.InputTokens)/1e6*price.Input + float64(usage.OutputTokens)/1e6*price.Output
}
