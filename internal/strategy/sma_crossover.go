package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"

	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

const (
	defaultSMAShortPeriod = 5
	defaultSMALongPeriod  = 20
	defaultSMAQuantity    = 10
)

// SMACrossover buys when the short moving average crosses above the long one
// and sells the position back when it crosses below.
type SMACrossover struct {
	shortPeriod int
	longPeriod  int
	quantity    float64

	inPosition bool
}

// NewSMACrossover creates an SMA crossover strategy. Zero values select the
// defaults (5, 20, quantity 10).
func NewSMACrossover(shortPeriod, longPeriod int, quantity float64) *SMACrossover {
	if shortPeriod <= 0 {
		shortPeriod = defaultSMAShortPeriod
	}

	if longPeriod <= 0 {
		longPeriod = defaultSMALongPeriod
	}

	if quantity <= 0 {
		quantity = defaultSMAQuantity
	}

	return &SMACrossover{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		quantity:    quantity,
		inPosition:  false,
	}
}

// NewSMACrossoverFromParams creates an SMA crossover strategy from a
// parameter map with keys short_period, long_period and quantity.
func NewSMACrossoverFromParams(params map[string]float64) (*SMACrossover, error) {
	shortPeriod := int(paramOr(params, "short_period", defaultSMAShortPeriod))
	longPeriod := int(paramOr(params, "long_period", defaultSMALongPeriod))

	if shortPeriod >= longPeriod {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError,
			"short period %d must be below long period %d", shortPeriod, longPeriod)
	}

	return NewSMACrossover(shortPeriod, longPeriod, paramOr(params, "quantity", defaultSMAQuantity)), nil
}

// Name implements Strategy.
func (s *SMACrossover) Name() string {
	return fmt.Sprintf("SMA_Cross_%d_%d", s.shortPeriod, s.longPeriod)
}

// OnPriceHistory implements Strategy. A crossover needs the averages at the
// previous bar too, so nothing is emitted until longPeriod+1 points exist.
func (s *SMACrossover) OnPriceHistory(history []types.PricePoint) optional.Option[types.TradeIntent] {
	if len(history) <= s.longPeriod {
		return optional.None[types.TradeIntent]()
	}

	shortMA := sma(history, s.shortPeriod)
	longMA := sma(history, s.longPeriod)

	prev := history[:len(history)-1]
	prevShortMA := sma(prev, s.shortPeriod)
	prevLongMA := sma(prev, s.longPeriod)

	switch {
	case prevShortMA <= prevLongMA && shortMA > longMA && !s.inPosition:
		s.inPosition = true

		return optional.Some(types.TradeIntent{Side: types.OrderSideBuy, Quantity: s.quantity})

	case prevShortMA >= prevLongMA && shortMA < longMA && s.inPosition:
		s.inPosition = false

		return optional.Some(types.TradeIntent{Side: types.OrderSideSell, Quantity: s.quantity})
	}

	return optional.None[types.TradeIntent]()
}

// sma averages the last period prices.
func sma(history []types.PricePoint, period int) float64 {
	var sum float64

	for _, point := range history[len(history)-period:] {
		sum += point.Price
	}

	return sum / float64(period)
}

// Verify SMACrossover implements the Strategy interface.
var _ Strategy = (*SMACrossover)(nil)
