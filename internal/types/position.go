package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents current holdings of a symbol. Quantity is signed:
// positive for long, negative for short. AvgCost is the weighted-average
// entry price of the open quantity.
type Position struct {
	Symbol      string  `yaml:"symbol" json:"symbol" csv:"symbol"`
	Quantity    float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	AvgCost     float64 `yaml:"avg_cost" json:"avg_cost" csv:"avg_cost"`
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl" csv:"realized_pnl"`
}

// MarketValue values the position at the given price.
func (p *Position) MarketValue(price float64) float64 {
	v := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(price))
	result, _ := v.Float64()

	return result
}

// UnrealizedPnL is the mark-to-market gain of the open quantity against its
// cost basis.
func (p *Position) UnrealizedPnL(price float64) float64 {
	diff := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(p.AvgCost))
	v := diff.Mul(decimal.NewFromFloat(p.Quantity))
	result, _ := v.Float64()

	return result
}

// IsFlat reports whether the position holds no quantity.
func (p *Position) IsFlat() bool {
	return p.Quantity == 0
}

// EquityPoint is one entry of the equity curve: total portfolio value at a
// point in time.
type EquityPoint struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Cash   float64   `yaml:"cash" json:"cash" csv:"cash"`
	Equity float64   `yaml:"equity" json:"equity" csv:"equity"`
}
