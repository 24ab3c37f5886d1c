package inference

import (
	"github.com/shopspring/decimal"
)

// Usage carries the token/search counters and cost of one or more inference
// calls. Add is commutative and associative with the zero value as identity,
// so usage from a variable number of calls per scan sums losslessly.
type Usage struct {
	PromptTokens   int64
	OutputTokens   int64
	ThoughtTokens  int64
	TotalTokens    int64
	SearchRequests int64
	Cost           decimal.Decimal
}

// Add combines two usage records.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:   u.PromptTokens + o.PromptTokens,
		OutputTokens:   u.OutputTokens + o.OutputTokens,
		ThoughtTokens:  u.ThoughtTokens + o.ThoughtTokens,
		TotalTokens:    u.TotalTokens + o.TotalTokens,
		SearchRequests: u.SearchRequests + o.SearchRequests,
		Cost:           u.Cost.Add(o.Cost),
	}
}

// RoundedCost returns the cost at currency precision. Rounding happens only
// here, after summation, never per call.
func (u Usage) RoundedCost() decimal.Decimal {
	return u.Cost.Round(6)
}

// Pricing holds the per-unit rates of one call type. Input tokens, output
// tokens (generated plus reasoning, one rate) and search invocations are
// billed independently.
type Pricing struct {
	InputRate  decimal.Decimal // per input token
	OutputRate decimal.Decimal // per output-category token
	SearchRate decimal.Decimal // per search invocation
}

// Cost computes the exact cost of a usage record under this pricing.
func (p Pricing) Cost(u Usage) decimal.Decimal {
	in := decimal.NewFromInt(u.PromptTokens).Mul(p.InputRate)
	out := decimal.NewFromInt(u.OutputTokens + u.ThoughtTokens).Mul(p.OutputRate)
	search := decimal.NewFromInt(u.SearchRequests).Mul(p.SearchRate)
	return in.Add(out).Add(search)
}
