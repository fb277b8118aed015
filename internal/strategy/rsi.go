package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"

	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

const (
	defaultRSIPeriod     = 14
	defaultRSIOversold   = 30
	defaultRSIOverbought = 70
	defaultRSIQuantity   = 10
)

// RSI buys when the relative strength index drops below the oversold
// threshold and sells the position back when it rises above the overbought
// threshold. It holds at most one position at a time.
type RSI struct {
	period     int
	oversold   float64
	overbought float64
	quantity   float64

	inPosition bool
}

// NewRSI creates an RSI strategy. Zero values select the defaults
// (14, 30, 70, quantity 10).
func NewRSI(period int, oversold, overbought, quantity float64) *RSI {
	if period <= 0 {
		period = defaultRSIPeriod
	}

	if oversold <= 0 {
		oversold = defaultRSIOversold
	}

	if overbought <= 0 {
		overbought = defaultRSIOverbought
	}

	if quantity <= 0 {
		quantity = defaultRSIQuantity
	}

	return &RSI{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
		quantity:   quantity,
		inPosition: false,
	}
}

// NewRSIFromParams creates an RSI strategy from a parameter map with keys
// period, oversold, overbought and quantity.
func NewRSIFromParams(params map[string]float64) (*RSI, error) {
	oversold := paramOr(params, "oversold", defaultRSIOversold)
	overbought := paramOr(params, "overbought", defaultRSIOverbought)

	if oversold >= overbought {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError,
			"oversold %.1f must be below overbought %.1f", oversold, overbought)
	}

	return NewRSI(
		int(paramOr(params, "period", defaultRSIPeriod)),
		oversold,
		overbought,
		paramOr(params, "quantity", defaultRSIQuantity),
	), nil
}

// Name implements Strategy.
func (s *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", s.period)
}

// OnPriceHistory implements Strategy. RSI needs period+1 prices; until then
// it emits nothing.
func (s *RSI) OnPriceHistory(history []types.PricePoint) optional.Option[types.TradeIntent] {
	if len(history) < s.period+1 {
		return optional.None[types.TradeIntent]()
	}

	rsi := s.compute(history[len(history)-s.period-1:])

	switch {
	case rsi < s.oversold && !s.inPosition:
		s.inPosition = true

		return optional.Some(types.TradeIntent{Side: types.OrderSideBuy, Quantity: s.quantity})

	case rsi > s.overbought && s.inPosition:
		s.inPosition = false

		return optional.Some(types.TradeIntent{Side: types.OrderSideSell, Quantity: s.quantity})
	}

	return optional.None[types.TradeIntent]()
}

// compute evaluates RSI over exactly period+1 points.
func (s *RSI) compute(window []types.PricePoint) float64 {
	var gains, losses float64

	for i := 1; i < len(window); i++ {
		delta := window[i].Price - window[i-1].Price
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(s.period)
	avgLoss := losses / float64(s.period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}

// Verify RSI implements the Strategy interface.
var _ Strategy = (*RSI)(nil)
