package portfolio

import (
	"sort"
	"sync"

	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/types"
)

// Portfolio is the accounting ledger of a run: cash, per-symbol positions,
// latest marks and the equity curve. It is updated only through fills and
// marks; the equity curve is append-only and monotone in timestamp.
type Portfolio struct {
	mu sync.Mutex

	initialCapital float64
	cash           float64
	positions      map[string]*types.Position
	marks          map[string]float64
	equityCurve    []types.EquityPoint
	realizedPnL    float64

	allowNegativeCash bool
	log               *logger.Logger
}

// New creates a portfolio holding the configured initial capital in cash.
func New(initialCapital float64, allowNegativeCash bool, log *logger.Logger) *Portfolio {
	return &Portfolio{
		initialCapital:    initialCapital,
		cash:              initialCapital,
		positions:         make(map[string]*types.Position),
		marks:             make(map[string]float64),
		equityCurve:       nil,
		realizedPnL:       0,
		allowNegativeCash: allowNegativeCash,
		log:               log,
	}
}

// ApplyFill adjusts cash and the symbol's position for an executed fill.
// Buys decrease cash, sells increase it. Same-direction fills recompute the
// weighted-average cost basis; direction-reducing fills realize P&L for the
// closed quantity; a fill that flips the direction re-bases the remainder at
// the fill price.
func (p *Portfolio) ApplyFill(fill types.Fill) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delta := fill.SignedQuantity()
	cost := decimal.NewFromFloat(delta).Mul(decimal.NewFromFloat(fill.Price))
	p.cash = decimalSub(p.cash, cost)

	pos, ok := p.positions[fill.Symbol]
	if !ok {
		pos = &types.Position{Symbol: fill.Symbol, Quantity: 0, AvgCost: 0, RealizedPnL: 0}
		p.positions[fill.Symbol] = pos
	}

	switch {
	case pos.Quantity == 0 || sameSign(pos.Quantity, delta):
		// Opening or adding: weighted-average cost basis.
		oldAmount := decimal.NewFromFloat(pos.AvgCost).Mul(decimal.NewFromFloat(abs(pos.Quantity)))
		addAmount := decimal.NewFromFloat(fill.Price).Mul(decimal.NewFromFloat(abs(delta)))
		newQty := abs(pos.Quantity) + abs(delta)
		pos.AvgCost, _ = oldAmount.Add(addAmount).Div(decimal.NewFromFloat(newQty)).Float64()
		pos.Quantity += delta

	case abs(delta) <= abs(pos.Quantity):
		// Reducing: realize P&L on the closed portion, basis unchanged.
		realized := realizedPnL(pos.Quantity, pos.AvgCost, fill.Price, abs(delta))
		pos.RealizedPnL += realized
		p.realizedPnL += realized
		pos.Quantity += delta

		if pos.Quantity == 0 {
			pos.AvgCost = 0
		}

	default:
		// Reversal: close the whole position, open the rest at the fill price.
		closed := abs(pos.Quantity)
		realized := realizedPnL(pos.Quantity, pos.AvgCost, fill.Price, closed)
		pos.RealizedPnL += realized
		p.realizedPnL += realized
		pos.Quantity += delta
		pos.AvgCost = fill.Price
	}

	p.log.Debug("fill applied to portfolio",
		zap.String("symbol", fill.Symbol),
		zap.Float64("quantity", delta),
		zap.Float64("price", fill.Price),
		zap.Float64("cash", p.cash),
	)
}

// Mark records the latest observed price for a symbol. It does not append to
// the equity curve.
func (p *Portfolio) Mark(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.marks[symbol] = price
}

// Snapshot computes total equity at the latest marks and appends it to the
// equity curve.
func (p *Portfolio) Snapshot(timestamp time.Time) types.EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	point := types.EquityPoint{
		Time:   timestamp,
		Cash:   p.cash,
		Equity: p.totalEquityLocked(),
	}
	p.equityCurve = append(p.equityCurve, point)

	return point
}

// TotalEquity returns cash plus the market value of all positions at their
// latest marks. Positions never marked fall back to their cost basis.
func (p *Portfolio) TotalEquity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.totalEquityLocked()
}

func (p *Portfolio) totalEquityLocked() float64 {
	equity := decimal.NewFromFloat(p.cash)

	for symbol, pos := range p.positions {
		if pos.IsFlat() {
			continue
		}

		price, ok := p.marks[symbol]
		if !ok {
			price = pos.AvgCost
		}

		equity = equity.Add(decimal.NewFromFloat(pos.Quantity).Mul(decimal.NewFromFloat(price)))
	}

	result, _ := equity.Float64()

	return result
}

// CanAfford reports whether a cash outlay of cost is permitted. With
// negative cash disallowed, the outlay must not drive cash below zero.
func (p *Portfolio) CanAfford(cost float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.allowNegativeCash {
		return true
	}

	return p.cash >= cost
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cash
}

// InitialCapital returns the configured starting cash.
func (p *Portfolio) InitialCapital() float64 {
	return p.initialCapital
}

// RealizedPnL returns the total P&L realized by direction-reducing fills.
func (p *Portfolio) RealizedPnL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.realizedPnL
}

// UnrealizedPnL returns the mark-to-market gain of all open positions.
func (p *Portfolio) UnrealizedPnL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := decimal.Zero

	for symbol, pos := range p.positions {
		if pos.IsFlat() {
			continue
		}

		price, ok := p.marks[symbol]
		if !ok {
			price = pos.AvgCost
		}

		total = total.Add(decimal.NewFromFloat(price).
			Sub(decimal.NewFromFloat(pos.AvgCost)).
			Mul(decimal.NewFromFloat(pos.Quantity)))
	}

	result, _ := total.Float64()

	return result
}

// Position returns the position for a symbol, zero-valued if none exists.
func (p *Portfolio) Position(symbol string) types.Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pos, ok := p.positions[symbol]; ok {
		return *pos
	}

	return types.Position{Symbol: symbol, Quantity: 0, AvgCost: 0, RealizedPnL: 0}
}

// Positions returns all non-flat positions sorted by symbol.
func (p *Portfolio) Positions() []types.Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	positions := make([]types.Position, 0, len(p.positions))

	for _, pos := range p.positions {
		if pos.IsFlat() {
			continue
		}

		positions = append(positions, *pos)
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})

	return positions
}

// EquityCurve returns a copy of the equity curve in append order.
func (p *Portfolio) EquityCurve() []types.EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	curve := make([]types.EquityPoint, len(p.equityCurve))
	copy(curve, p.equityCurve)

	return curve
}

// realizedPnL computes the gain on closing closedQty against the basis.
// A long position gains when the exit price exceeds the basis; a short
// position gains when it falls below.
func realizedPnL(positionQty, avgCost, fillPrice, closedQty float64) float64 {
	diff := decimal.NewFromFloat(fillPrice).Sub(decimal.NewFromFloat(avgCost))
	if positionQty < 0 {
		diff = diff.Neg()
	}

	result, _ := diff.Mul(decimal.NewFromFloat(closedQty)).Float64()

	return result
}

func decimalSub(a float64, b decimal.Decimal) float64 {
	result, _ := decimal.NewFromFloat(a).Sub(b).Float64()

	return result
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}
