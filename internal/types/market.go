package types

import "time"

// MarketData is a single bar of market data. It is the unit of progress for
// both simulated and live runs: the engine processes exactly one MarketData
// per cycle.
type MarketData struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// Price returns the price used for marking and simulated execution.
func (m MarketData) Price() float64 {
	return m.Close
}

// PricePoint is one entry of the price history fed to strategies.
type PricePoint struct {
	Time  time.Time `yaml:"time" json:"time"`
	Price float64   `yaml:"price" json:"price"`
}
