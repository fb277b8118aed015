package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"

	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

const (
	defaultMomentumPeriod        = 10
	defaultMomentumBuyThreshold  = 0.5
	defaultMomentumSellThreshold = -0.3
	defaultMomentumQuantity      = 10
)

// Momentum trades on the rate of change of price over a lookback period. It
// buys when momentum exceeds the buy threshold and sells the position back
// when momentum drops below the sell threshold or turns negative. It holds at
// most one position at a time.
type Momentum struct {
	period        int
	buyThreshold  float64
	sellThreshold float64
	quantity      float64

	inPosition bool
}

// NewMomentum creates a momentum strategy. Zero period, buy threshold or
// quantity select the defaults (10, 0.5%, quantity 10); a zero sell threshold
// selects -0.3%.
func NewMomentum(period int, buyThreshold, sellThreshold, quantity float64) *Momentum {
	if period <= 0 {
		period = defaultMomentumPeriod
	}

	if buyThreshold <= 0 {
		buyThreshold = defaultMomentumBuyThreshold
	}

	if sellThreshold == 0 {
		sellThreshold = defaultMomentumSellThreshold
	}

	if quantity <= 0 {
		quantity = defaultMomentumQuantity
	}

	return &Momentum{
		period:        period,
		buyThreshold:  buyThreshold,
		sellThreshold: sellThreshold,
		quantity:      quantity,
		inPosition:    false,
	}
}

// NewMomentumFromParams creates a momentum strategy from a parameter map with
// keys period, buy_threshold, sell_threshold and quantity.
func NewMomentumFromParams(params map[string]float64) (*Momentum, error) {
	buyThreshold := paramOr(params, "buy_threshold", defaultMomentumBuyThreshold)
	sellThreshold := paramOr(params, "sell_threshold", defaultMomentumSellThreshold)

	if sellThreshold >= buyThreshold {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError,
			"sell threshold %.2f must be below buy threshold %.2f", sellThreshold, buyThreshold)
	}

	return NewMomentum(
		int(paramOr(params, "period", defaultMomentumPeriod)),
		buyThreshold,
		sellThreshold,
		paramOr(params, "quantity", defaultMomentumQuantity),
	), nil
}

// Name implements Strategy.
func (s *Momentum) Name() string {
	return fmt.Sprintf("Momentum_%d", s.period)
}

// OnPriceHistory implements Strategy. The rate of change needs period+1
// prices; until then it emits nothing.
func (s *Momentum) OnPriceHistory(history []types.PricePoint) optional.Option[types.TradeIntent] {
	if len(history) < s.period+1 {
		return optional.None[types.TradeIntent]()
	}

	roc := s.rateOfChange(history)

	switch {
	case roc > s.buyThreshold && !s.inPosition:
		s.inPosition = true

		return optional.Some(types.TradeIntent{Side: types.OrderSideBuy, Quantity: s.quantity})

	case (roc < s.sellThreshold || roc < 0) && s.inPosition:
		s.inPosition = false

		return optional.Some(types.TradeIntent{Side: types.OrderSideSell, Quantity: s.quantity})
	}

	return optional.None[types.TradeIntent]()
}

// rateOfChange is the percentage change between the latest price and the
// price one period earlier.
func (s *Momentum) rateOfChange(history []types.PricePoint) float64 {
	current := history[len(history)-1].Price
	past := history[len(history)-s.period-1].Price

	if past == 0 {
		return 0
	}

	return (current - past) / past * 100
}

// Verify Momentum implements the Strategy interface.
var _ Strategy = (*Momentum)(nil)
