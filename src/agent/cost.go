package agent

import (
	"github.com/shopspring/decimal"

	"trade-agent/src/interfaces"
)

// -----------------------------------------------------------------------------
// LLM cost tracking. Prices are USD per token, kept as decimals so the
// running totals stay exact across millions of small additions.
// -----------------------------------------------------------------------------

type modelPricing struct {
	inputPerToken  decimal.Decimal
	outputPerToken decimal.Decimal
}

var pricingTable = map[string]modelPricing{
	"gpt-4o": {
		inputPerToken:  decimal.RequireFromString("0.0000025"),
		outputPerToken: decimal.RequireFromString("0.00001"),
	},
	"gpt-4o-mini": {
		inputPerToken:  decimal.RequireFromString("0.00000015"),
		outputPerToken: decimal.RequireFromString("0.0000006"),
	},
	"claude-sonnet": {
		inputPerToken:  decimal.RequireFromString("0.000003"),
		outputPerToken: decimal.RequireFromString("0.000015"),
	},
	"claude-haiku": {
		inputPerToken:  decimal.RequireFromString("0.0000008"),
		outputPerToken: decimal.RequireFromString("0.000004"),
	},
}

// defaultPricing covers unknown models so spend is never silently zero.
var defaultPricing = modelPricing{
	inputPerToken:  decimal.RequireFromString("0.000003"),
	outputPerToken: decimal.RequireFromString("0.000015"),
}

// -----------------------------------------------------------------------------

// recordCostLocked folds one usage report into the cost tracker.
func (a *Agent) recordCostLocked(model string, usage *interfaces.MLLMUsage) {
	if usage == nil {
		return
	}

	pricing, ok := pricingTable[model]
	if !ok {
		pricing = defaultPricing
	}

	cost := pricing.inputPerToken.Mul(decimal.NewFromInt(usage.InputTokens)).
		Add(pricing.outputPerToken.Mul(decimal.NewFromInt(usage.OutputTokens)))

	tracker := &a.state.Cost
	if tracker.CostByModel == nil {
		tracker.CostByModel = make(map[string]string)
	}
	if tracker.TokensByModel == nil {
		tracker.TokensByModel = make(map[string]int64)
	}
	if tracker.RequestsByModel == nil {
		tracker.RequestsByModel = make(map[string]int64)
	}

	total, err := decimal.NewFromString(tracker.TotalCostUSD)
	if err != nil {
		total = decimal.Zero
	}
	tracker.TotalCostUSD = total.Add(cost).String()

	prev, err := decimal.NewFromString(tracker.CostByModel[model])
	if err != nil {
		prev = decimal.Zero
	}
	tracker.CostByModel[model] = prev.Add(cost).String()

	tracker.TokensByModel[model] += usage.InputTokens + usage.OutputTokens
	tracker.RequestsByModel[model]++
}
